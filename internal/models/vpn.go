package models

// VPNKeys ключевой материал, выданный провижинером.
type VPNKeys struct {
	PrivateKey    string
	ClientAddress string
}

// VPNConfig параметры подключения клиента к WireGuard.
type VPNConfig struct {
	PrivateKey      string `json:"private_key"`
	Address         string `json:"address"`
	DNS             string `json:"dns"`
	ServerPublicKey string `json:"server_public_key"`
	Endpoint        string `json:"endpoint"`
	AllowedIPs      string `json:"allowed_ips"`
}
