// Package consul registers the service with a Consul agent so other services
// can discover the poll API.
package consul

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/hashicorp/consul/api"
)

const serviceName = "polling-engine"

type agent interface {
	ServiceRegister(service *api.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
}

type Registration struct {
	agent  agent
	id     string
	logger *slog.Logger
}

// Register announces the service on port with an HTTP check against /health.
func Register(addr, port string, logger *slog.Logger) (*Registration, error) {
	cfg := api.DefaultConfig()
	cfg.Address = addr
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}
	return register(client.Agent(), port, logger)
}

func register(a agent, port string, logger *slog.Logger) (*Registration, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid service port %q: %w", port, err)
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}

	id := fmt.Sprintf("%s-%s-%d", serviceName, host, p)
	reg := &api.AgentServiceRegistration{
		ID:      id,
		Name:    serviceName,
		Address: host,
		Port:    p,
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", host, p),
			Interval:                       "10s",
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := a.ServiceRegister(reg); err != nil {
		return nil, fmt.Errorf("register %s: %w", id, err)
	}
	logger.Info("registered with consul", "event", "consul_registered", "module", "consul", "layer", "platform", "service_id", id)
	return &Registration{agent: a, id: id, logger: logger}, nil
}

func (r *Registration) Deregister() {
	if r == nil {
		return
	}
	if err := r.agent.ServiceDeregister(r.id); err != nil {
		r.logger.Error("consul deregister failed", "event", "consul_deregister_failed", "module", "consul", "layer", "platform", "service_id", r.id, "error", err.Error())
		return
	}
	r.logger.Info("deregistered from consul", "event", "consul_deregistered", "module", "consul", "layer", "platform", "service_id", r.id)
}
