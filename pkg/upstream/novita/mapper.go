package novita

import (
	"fmt"
	"strconv"
	"time"

	"novita-orchestrator/internal/model"
)

// mapProduct translates a wire product into the internal model, deriving
// availability from availableDeploy per §6.
func mapProduct(w productWire, region string) model.Product {
	availability := model.AvailabilityUnavailable
	if w.AvailableDeploy {
		availability = model.AvailabilityAvailable
	}
	return model.Product{
		ID:            w.ID,
		Name:          w.Name,
		Region:        region,
		SpotPrice:     w.SpotPrice,
		OnDemandPrice: w.Price,
		GPUType:       w.GPUType,
		GPUMemory:     w.GPUMemory,
		Availability:  availability,
	}
}

// mapTemplate flattens the wire's type-grouped ports into model.TemplatePort
// entries, per §4.2's "ports grouped by type — flatten to [{port,type}]".
func mapTemplate(w templateWire) model.Template {
	t := model.Template{
		ID:          w.ID,
		Name:        w.Name,
		Image:       w.Image,
		ImageAuth:   w.ImageAuth,
		Description: w.Description,
	}
	for _, group := range w.Ports {
		for _, p := range group.Ports {
			t.Ports = append(t.Ports, model.TemplatePort{Port: p, Type: group.Type})
		}
	}
	for _, e := range w.Envs {
		t.Envs = append(t.Envs, model.EnvVar{Key: e.Key, Value: e.Value})
	}
	return t
}

func templateToConfiguration(t model.Template) model.TemplateConfiguration {
	return model.TemplateConfiguration{
		ImageURL:  t.Image,
		ImageAuth: t.ImageAuth,
		Ports:     t.Ports,
		Envs:      t.Envs,
	}
}

// mapInstance translates an upstream instance into the port-mapping and
// timestamp shape the rest of the control plane expects: clusterName
// becomes region, createdAt (unix seconds) becomes ISO-8601, and
// type-grouped port mappings are flattened (§4.2).
func mapInstance(w instanceWire) (status string, region string, createdAt time.Time, ports []model.PortMapping) {
	status = w.Status
	region = w.ClusterName
	createdAt = time.Unix(w.CreatedAt, 0).UTC()
	for _, group := range w.PortMappings {
		for _, p := range group.Ports {
			ports = append(ports, model.PortMapping{Port: p.Port, Endpoint: p.Endpoint, Type: group.Type})
		}
	}
	return
}

// buildPortsString renders §6's "8080/http,22/tcp" create-instance port
// encoding from resolved template ports.
func buildPortsString(ports []model.TemplatePort) string {
	s := ""
	for i, p := range ports {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d/%s", p.Port, p.Type)
	}
	return s
}

func gpuNumString(n int) string {
	return strconv.Itoa(n)
}
