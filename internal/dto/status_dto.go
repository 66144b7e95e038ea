package dto

// ComponentStatus is the health detail for one dependency. Unauthenticated
// callers only ever see the "status" key, everything else is stripped.
type ComponentStatus map[string]interface{}

type RootResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Version     string `json:"version"`
	HealthCheck string `json:"health_check"`
}

type HealthResponse struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	Service       string            `json:"service"`
	Version       string            `json:"version"`
	Status        string            `json:"status"`
	Dependencies  map[string]string `json:"dependencies"`
	UptimeSeconds float64           `json:"uptime_seconds"`
}

type ServiceStatusResponse struct {
	Success  bool                       `json:"success"`
	Message  string                     `json:"message"`
	Services map[string]ComponentStatus `json:"services"`
}
