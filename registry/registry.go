// Package registry announces the HTTP and gRPC listeners to a service
// catalogue so other services can find them.
package registry

import (
	"fmt"
	"strings"

	consulapi "github.com/hashicorp/consul/api"
)

// ServiceRegistry registers service instances and finds healthy ones.
type ServiceRegistry interface {
	Register(instance Instance) error
	Deregister(id string) error
	// Discover returns "host:port" of every passing instance of name.
	Discover(name, tag string) ([]string, error)
}

// Instance is one listener of this process.
type Instance struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
	Check   *consulapi.AgentServiceCheck
}

// Endpoints describes where this process listens.
type Endpoints struct {
	ServiceName string
	Host        string
	HTTPPort    int
	GRPCPort    int
	HealthPath  string
}

// RegisterEndpoints registers the HTTP listener (health checked over
// HealthPath) and the gRPC listener (health checked with the gRPC health
// protocol). The returned func deregisters both; it is safe to call when
// registration failed part way.
func RegisterEndpoints(reg ServiceRegistry, ep Endpoints) (func() error, error) {
	instances := []Instance{
		{
			ID:      instanceID(ep.ServiceName, "http", ep.Host, ep.HTTPPort),
			Name:    ep.ServiceName + "-http",
			Address: ep.Host,
			Port:    ep.HTTPPort,
			Tags:    []string{"http", "rest"},
		},
		{
			ID:      instanceID(ep.ServiceName, "grpc", ep.Host, ep.GRPCPort),
			Name:    ep.ServiceName + "-grpc",
			Address: ep.Host,
			Port:    ep.GRPCPort,
			Tags:    []string{"grpc"},
		},
	}
	instances[0].Check = HTTPCheck(instances[0].ID, ep.Host, ep.HTTPPort, ep.HealthPath, "10s", "2s")
	instances[1].Check = GRPCCheck(instances[1].ID, fmt.Sprintf("%s:%d", ep.Host, ep.GRPCPort), "10s", "2s")

	var registered []string
	deregister := func() error {
		var errs []string
		for _, id := range registered {
			if err := reg.Deregister(id); err != nil {
				errs = append(errs, err.Error())
			}
		}
		registered = nil
		if len(errs) > 0 {
			return fmt.Errorf("deregister: %s", strings.Join(errs, "; "))
		}
		return nil
	}

	for _, inst := range instances {
		if err := reg.Register(inst); err != nil {
			_ = deregister()
			return func() error { return nil }, err
		}
		registered = append(registered, inst.ID)
	}
	return deregister, nil
}

func instanceID(service, protocol, host string, port int) string {
	return fmt.Sprintf("%s-%s-%s-%d", service, protocol, host, port)
}

// HTTPCheck builds a Consul HTTP health check against http://host:port/path.
func HTTPCheck(serviceID, host string, port int, path, interval, timeout string) *consulapi.AgentServiceCheck {
	return &consulapi.AgentServiceCheck{
		CheckID:                        "check_" + serviceID,
		Name:                           "HTTP check for " + serviceID,
		HTTP:                           fmt.Sprintf("http://%s:%d%s", host, port, path),
		Method:                         "GET",
		Interval:                       interval,
		Timeout:                        timeout,
		DeregisterCriticalServiceAfter: "1m",
	}
}

// GRPCCheck builds a Consul check that calls grpc.health.v1.Health/Check.
func GRPCCheck(serviceID, target, interval, timeout string) *consulapi.AgentServiceCheck {
	return &consulapi.AgentServiceCheck{
		CheckID:                        "check_" + serviceID,
		Name:                           "gRPC check for " + serviceID,
		GRPC:                           target,
		Interval:                       interval,
		Timeout:                        timeout,
		DeregisterCriticalServiceAfter: "1m",
	}
}
