package registry

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

type consulRegistry struct {
	client *consulapi.Client
	logger *zap.SugaredLogger
}

var _ ServiceRegistry = (*consulRegistry)(nil)

// NewConsulRegistry connects to the Consul agent at address and checks that
// it answers.
func NewConsulRegistry(address string, logger *zap.SugaredLogger) (ServiceRegistry, error) {
	consulConfig := consulapi.DefaultConfig()
	consulConfig.Address = address

	client, err := consulapi.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	if _, err := client.Agent().NodeName(); err != nil {
		logger.Errorw("Failed to connect to Consul agent", "address", address, "error", err)
		return nil, fmt.Errorf("cannot connect to consul agent at %s: %w", address, err)
	}
	logger.Infow("Connected to Consul agent", "address", address)

	return &consulRegistry{
		client: client,
		logger: logger.Named("consul"),
	}, nil
}

func (r *consulRegistry) Register(inst Instance) error {
	reg := &consulapi.AgentServiceRegistration{
		ID:      inst.ID,
		Name:    inst.Name,
		Tags:    inst.Tags,
		Port:    inst.Port,
		Address: inst.Address,
		Check:   inst.Check,
	}
	if err := r.client.Agent().ServiceRegister(reg); err != nil {
		r.logger.Errorw("Failed to register service", "service_id", inst.ID, "error", err)
		return fmt.Errorf("failed to register service '%s': %w", inst.Name, err)
	}
	r.logger.Infow("Registered service", "service_id", inst.ID, "address", inst.Address, "port", inst.Port)
	return nil
}

func (r *consulRegistry) Deregister(id string) error {
	if err := r.client.Agent().ServiceDeregister(id); err != nil {
		r.logger.Errorw("Failed to deregister service", "service_id", id, "error", err)
		return fmt.Errorf("failed to deregister service '%s': %w", id, err)
	}
	r.logger.Infow("Deregistered service", "service_id", id)
	return nil
}

func (r *consulRegistry) Discover(name, tag string) ([]string, error) {
	instances, _, err := r.client.Health().Service(name, tag, true, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover service '%s': %w", name, err)
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("no healthy instances found for service '%s'", name)
	}

	addrs := make([]string, 0, len(instances))
	for _, inst := range instances {
		// Service.Address is optional; Consul falls back to the node.
		addr := inst.Service.Address
		if addr == "" {
			addr = inst.Node.Address
		}
		addrs = append(addrs, fmt.Sprintf("%s:%d", addr, inst.Service.Port))
	}
	return addrs, nil
}
