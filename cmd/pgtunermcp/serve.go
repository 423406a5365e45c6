package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	pgtuner "github.com/pgtuner/pgtuner-mcp"
)

func runServe() error {
	ctx := context.Background()

	serverConfig, err := loadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if serverConfig.Server.Port <= 0 {
		panic("pgtunermcp: server.port must be > 0")
	}

	logger := setupLogger(serverConfig.Logging)

	tuner, err := pgtuner.New(serverConfig.Config, logger)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer tuner.Close(ctx)

	// Auto-connect when the config file carries connection parameters.
	// Without them the server starts disconnected and the agent uses the
	// connect tool.
	if serverConfig.Connection.Host != "" && serverConfig.Connection.Database != "" {
		if err := autoConnect(ctx, tuner, serverConfig.Connection); err != nil {
			logger.Error().Err(err).Msg("initial database connection failed")
			return fmt.Errorf("initial database connection failed: %w", err)
		}
		logger.Info().Msg("initial database connection established")
	} else {
		logger.Info().Msg("no connection configured, waiting for connect tool call")
	}

	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("pgtunermcp", version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)

	pgtuner.RegisterMCPTools(mcpServer, tuner)

	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not DB connectivity)
	if serverConfig.Server.HealthCheckEnabled {
		if serverConfig.Server.HealthCheckPath == "" {
			panic("pgtunermcp: health_check_path must be set when health_check_enabled is true")
		}
		mux.HandleFunc(serverConfig.Server.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Manually register the MCP handler — Start() does NOT register
	// when a custom *http.Server is provided via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamableServer)

	logger.Info().Int("port", serverConfig.Server.Port).Msg("starting pgtunermcp server")
	return streamableServer.Start(addr)
}

// autoConnect connects using the config file's connection block. The
// password comes from PGTUNER_PG_PASSWORD, or an interactive prompt when
// running on a terminal.
func autoConnect(ctx context.Context, tuner *pgtuner.PgTuner, conn pgtuner.ConnectionConfig) error {
	user := conn.User
	if user == "" {
		user = promptInput("Username: ")
	}
	password := os.Getenv("PGTUNER_PG_PASSWORD")
	if password == "" && isTTY(os.Stdin.Fd()) {
		password = promptPassword("Password: ")
	}

	return tuner.Connect(ctx, pgtuner.ConnectInput{
		Host:     conn.Host,
		Port:     conn.Port,
		Database: conn.Database,
		User:     user,
		Password: password,
		SSL:      conn.SSL,
	})
}

func loadServerConfig() (*pgtuner.ServerConfig, error) {
	configPath := os.Getenv("PGTUNER_CONFIG_PATH")
	if configPath == "" {
		configPath = ".pgtunermcp/config.json"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config pgtuner.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

func setupLogger(config pgtuner.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func promptInput(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	var input string
	fmt.Scanln(&input)
	return input
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return ""
	}
	return string(password)
}
