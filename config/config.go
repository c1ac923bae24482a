// Package config carrega a configuração do StarNotary com viper:
// arquivo YAML, valores padrão e variáveis de ambiente STARNOTARY_*.
package config

import (
	"time"
)

// EnvPrefix é o prefixo das variáveis de ambiente que sobrescrevem o arquivo.
const EnvPrefix = "STARNOTARY"

type Conf struct {
	Collection Collection `mapstructure:"collection" yaml:"collection"`
	HTTPServer HTTPServer `mapstructure:"http_server" yaml:"http_server"`
	Database   Database   `mapstructure:"database" yaml:"database"`
	Solana     Solana     `mapstructure:"solana" yaml:"solana"`
	Ledger     Ledger     `mapstructure:"ledger" yaml:"ledger"`
	Auth       Auth       `mapstructure:"auth" yaml:"auth"`
	Log        Log        `mapstructure:"log" yaml:"log"`
}

type Collection struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Symbol string `mapstructure:"symbol" yaml:"symbol"`
}

type HTTPServer struct {
	Address        string        `mapstructure:"address" yaml:"address"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type Database struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // "postgres" ou "sqlite"
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// Solana configura a liquidação on-chain. Sem TreasuryKey os saques e o listener ficam desligados.
type Solana struct {
	RPCURL      string `mapstructure:"rpc_url" yaml:"rpc_url"`
	WSURL       string `mapstructure:"ws_url" yaml:"ws_url"`
	TreasuryKey string `mapstructure:"treasury_key" yaml:"-"`
	Listen      bool   `mapstructure:"listen" yaml:"listen"`
}

type Ledger struct {
	Faucet bool `mapstructure:"faucet" yaml:"faucet"` // Permite depósitos via HTTP (somente dev)
}

type Auth struct {
	RequireSignature bool          `mapstructure:"require_signature" yaml:"require_signature"`
	SignatureWindow  time.Duration `mapstructure:"signature_window" yaml:"signature_window"` // Validade do X-Timestamp
}

type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Output string `mapstructure:"output" yaml:"output"` // stdout, stderr ou diretório
}

// CMDLine guarda as flags globais da linha de comando.
type CMDLine struct {
	ConfigPath string
	EnvFile    string
	Debug      bool
}
