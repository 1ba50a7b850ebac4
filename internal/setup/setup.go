// Package setup registers the screening MCP server with desktop MCP clients.
package setup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/goccy/go-json"

	"github.com/health-screening-server/internal/config"
)

const (
	// ServerName is the key used under mcpServers
	ServerName = "health-screening"

	// BinaryName is the installed name of cmd/mcp-server
	BinaryName = "health-screening-mcp"
)

// ClientConfig is an MCP client configuration file. Keys other than
// mcpServers are carried through untouched.
type ClientConfig struct {
	MCPServers map[string]ServerEntry
	extra      map[string]json.RawMessage
}

// ServerEntry launches one MCP server over stdio
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls Install
type Options struct {
	ConfigPath string
	BinaryPath string
	DataDir    string
	LogLevel   string
}

// Status describes the registration found in a client config
type Status struct {
	ConfigPath   string   `json:"config_path"`
	Registered   bool     `json:"registered"`
	Command      string   `json:"command,omitempty"`
	DataDir      string   `json:"data_dir,omitempty"`
	BinaryExists bool     `json:"binary_exists"`
	Issues       []string `json:"issues,omitempty"`
}

// DefaultClientConfigPath returns the desktop client config location for this OS
func DefaultClientConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads path. A missing file yields an empty config.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{
		MCPServers: make(map[string]ServerEntry),
		extra:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read client config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]ServerEntry)
	}

	return cfg, nil
}

// Save writes the config to path, creating the directory when needed
func (c *ClientConfig) Save(path string) error {
	out := make(map[string]any, len(c.extra)+1)
	for k, v := range c.extra {
		out[k] = v
	}
	out["mcpServers"] = c.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal client config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write client config: %w", err)
	}
	return nil
}

// Install adds or replaces the health-screening entry and returns it
func Install(opts Options) (*ServerEntry, error) {
	binary := opts.BinaryPath
	if binary == "" {
		found, err := FindBinary()
		if err != nil {
			return nil, err
		}
		binary = found
	}

	cfg, err := LoadClientConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	entry := ServerEntry{Command: binary, Env: make(map[string]string)}
	if opts.DataDir != "" {
		entry.Env[config.EnvDataDir] = opts.DataDir
	}
	if opts.LogLevel != "" {
		entry.Env[config.EnvLogLevel] = opts.LogLevel
	}
	cfg.MCPServers[ServerName] = entry

	if err := cfg.Save(opts.ConfigPath); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Uninstall removes the health-screening entry. It reports whether one was present.
func Uninstall(configPath string) (bool, error) {
	cfg, err := LoadClientConfig(configPath)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.MCPServers[ServerName]; !ok {
		return false, nil
	}
	delete(cfg.MCPServers, ServerName)
	return true, cfg.Save(configPath)
}

// GetStatus inspects configPath for the health-screening entry
func GetStatus(configPath string) (*Status, error) {
	cfg, err := LoadClientConfig(configPath)
	if err != nil {
		return nil, err
	}

	status := &Status{ConfigPath: configPath}
	entry, ok := cfg.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, "server is not registered")
		return status, nil
	}

	status.Registered = true
	status.Command = entry.Command
	status.DataDir = entry.Env[config.EnvDataDir]

	info, err := os.Stat(entry.Command)
	switch {
	case err != nil:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	case info.Mode()&0111 == 0:
		status.BinaryExists = true
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	default:
		status.BinaryExists = true
	}

	return status, nil
}

// FindBinary looks for the MCP server on PATH and in common install locations
func FindBinary() (string, error) {
	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"./" + BinaryName,
		"./bin/" + BinaryName,
		filepath.Join(home, ".local", "bin", BinaryName),
		"/usr/local/bin/" + BinaryName,
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary %q not found on PATH or in common locations", BinaryName)
}
