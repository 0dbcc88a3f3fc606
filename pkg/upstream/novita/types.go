// Package novita is the typed wrapper over the upstream GPU cloud HTTP API
// (C2): bearer auth, a shared doRequest shape, structured errors on
// non-2xx responses, and typed wire-to-domain translation. Adds a circuit
// breaker (sony/gobreaker) and a token-bucket rate limiter
// (golang.org/x/time/rate) on top of the base request/response shape.
package novita

// Wire-format types, named as consumed per §6 — not bit-exact with any real
// provider, just the semantic shape this control plane depends on.

type productsResponse struct {
	Data []productWire `json:"data"`
}

type productWire struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	AvailableDeploy bool     `json:"availableDeploy"`
	Price           float64  `json:"price"`
	SpotPrice       float64  `json:"spotPrice"`
	Regions         []string `json:"regions"`
	GPUType         string   `json:"gpuType"`
	GPUMemory       string   `json:"gpuMemory"`
}

type templateResponse struct {
	Template templateWire `json:"template"`
}

type templateWire struct {
	ID          string            `json:"Id"`
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	ImageAuth   string            `json:"imageAuth,omitempty"`
	Ports       []templatePortGroup `json:"ports"`
	Envs        []envVarWire      `json:"envs"`
	Description string            `json:"description,omitempty"`
}

type templatePortGroup struct {
	Type  string `json:"type"`
	Ports []int  `json:"ports"`
}

type envVarWire struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type registryAuthResponse struct {
	Data []registryAuthWire `json:"data"`
}

type registryAuthWire struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type createInstanceRequestWire struct {
	Name       string       `json:"name"`
	ProductID  string       `json:"productId"`
	GPUNum     string       `json:"gpuNum"`
	RootfsSize int          `json:"rootfsSize"`
	ImageURL   string       `json:"imageUrl"`
	Kind       string       `json:"kind"`
	BillingMode string      `json:"billingMode"`
	ImageAuth  string       `json:"imageAuth,omitempty"`
	Ports      string       `json:"ports,omitempty"`
	Envs       []envVarWire `json:"envs,omitempty"`
	ClusterID  string       `json:"clusterId,omitempty"`
}

type createInstanceResponseWire struct {
	ID string `json:"id"`
}

type migrateRequestWire struct {
	InstanceID string `json:"instanceId"`
}

type migrateResponseWire struct {
	Message       string `json:"message"`
	NewInstanceID string `json:"newInstanceId,omitempty"`
	Error         string `json:"error,omitempty"`
}

type portMappingGroup struct {
	Type  string `json:"type"`
	Ports []struct {
		Port     int    `json:"port"`
		Endpoint string `json:"endpoint"`
	} `json:"ports"`
}

type instanceWire struct {
	ID              string             `json:"id"`
	Status          string             `json:"status"`
	ClusterName     string             `json:"clusterName"`
	GPUNum          string             `json:"gpuNum"`
	CreatedAt       int64              `json:"createdAt"` // unix seconds
	PortMappings    []portMappingGroup `json:"portMappings"`
	SpotStatus      string             `json:"spotStatus,omitempty"`
	SpotReclaimTime string             `json:"spotReclaimTime,omitempty"`
}

type listInstancesResponseWire struct {
	Data     []instanceWire `json:"data"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Total    int            `json:"total"`
}

type errorResponseWire struct {
	Message string `json:"message"`
}
