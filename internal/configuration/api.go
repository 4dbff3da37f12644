package configuration

type ApiConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	// AllowedOrigins enables CORS for the given origins
	AllowedOrigins []string `json:"allowedOrigins"`
}

type StatisticsConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type SeedConfig struct {
	Enabled         bool   `json:"enabled"`
	ThermalZonePath string `json:"thermalZonePath"`
}

type EventsConfig struct {
	BufferSize int `json:"bufferSize"`
	// Retention is the maximum number of events kept in the database
	Retention int `json:"retention"`
}
