package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Compositor junta flags, arquivo .env, arquivo YAML e ambiente em uma única Conf.
type Compositor struct {
	CMDLine *CMDLine
	Conf    *Conf
}

func NewCompositor() *Compositor {
	return &Compositor{CMDLine: &CMDLine{}}
}

// LoadEnv carrega o arquivo .env (se existir) para o ambiente do processo.
// Variáveis já definidas não são sobrescritas.
func (c *Compositor) LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("erro ao carregar %s: %w", path, err)
	}
	return nil
}

// LoadConf lê o YAML em `path` (opcional) com padrões e sobrescritas STARNOTARY_*.
func (c *Compositor) LoadConf(path string) error {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("erro ao ler configuração: %w", err)
			}
		}
	}

	var cfg Conf
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("erro ao decodificar configuração: %w", err)
	}
	if c.CMDLine != nil && c.CMDLine.Debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.Conf = &cfg
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("collection.name", "My STAR COLLECTIONS")
	v.SetDefault("collection.symbol", "SYT")
	v.SetDefault("http_server.address", "0.0.0.0:8080")
	v.SetDefault("http_server.timeout", "5s")
	v.SetDefault("http_server.idle_timeout", "60s")
	v.SetDefault("http_server.allowed_origins", []string{"*"})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:starnotary.db")
	v.SetDefault("solana.rpc_url", "http://127.0.0.1:8899")
	v.SetDefault("solana.ws_url", "ws://127.0.0.1:8900")
	v.SetDefault("solana.treasury_key", "")
	v.SetDefault("solana.listen", false)
	v.SetDefault("ledger.faucet", false)
	v.SetDefault("auth.require_signature", false)
	v.SetDefault("auth.signature_window", "5m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
}

// Validate verifica combinações inválidas de configuração.
func (c *Conf) Validate() error {
	if c.Collection.Name == "" || c.Collection.Symbol == "" {
		return errors.New("collection.name e collection.symbol são obrigatórios")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver inválido: %q", c.Database.Driver)
	}
	if c.Solana.Listen && c.Solana.TreasuryKey == "" {
		return errors.New("solana.listen exige solana.treasury_key")
	}
	return nil
}

// Print escreve a configuração efetiva em YAML. A chave da tesouraria nunca é impressa.
func (c *Compositor) Print(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Conf); err != nil {
		return fmt.Errorf("erro ao imprimir configuração: %w", err)
	}
	return enc.Close()
}
