// pagedriver is the page-side reference client: it opens a browser, keeps
// the operator supplied with page maps, and carries out tool commands. It
// also takes typed transcripts on stdin so the whole loop can be exercised
// without a microphone.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"browser-operator/internal/config"
	"browser-operator/internal/infrastructure/browser/rodop"
	"browser-operator/internal/infrastructure/env"
	"browser-operator/internal/infrastructure/logger"
	"browser-operator/internal/infrastructure/transport"
	"browser-operator/internal/infrastructure/userinteraction"
	"browser-operator/internal/pageagent"
)

func main() {
	envService := env.NewEnvService()

	logCfg := logger.DefaultConfig()
	logCfg.Level = envService.GetDefault("LOG_LEVEL", "info")
	logCfg.RunName = "pagedriver"
	logg, err := logger.NewZapAdapter(logCfg)
	if err != nil {
		log.Fatalf("logger failed: %v", err)
	}
	defer logg.Close()

	pol, err := config.Load(envService.GetDefault("OPERATOR_POLICY_FILE", ""))
	if err != nil {
		log.Fatalf("policy failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	browserCfg := rodop.DefaultBrowserConfig()
	browserCfg.Headless = envService.GetBool("BROWSER_HEADLESS", false)
	browser, err := rodop.NewBrowser(ctx, browserCfg, pol, logg)
	if err != nil {
		log.Fatalf("browser failed: %v", err)
	}
	defer browser.Close()

	startURL := envService.GetDefault("START_URL", "https://example.com")
	if err := browser.Navigate(ctx, startURL); err != nil {
		log.Fatalf("could not open %s: %v", startURL, err)
	}

	wsURL := envService.GetDefault("OPERATOR_WS_URL", "ws://127.0.0.1:8765/ws")
	tabID := uuid.NewString()
	client, err := transport.Dial(ctx, wsURL, tabID)
	if err != nil {
		log.Fatalf("could not reach operator at %s: %v", wsURL, err)
	}
	defer client.Close()

	agent := pageagent.New(browser, client, userinteraction.NewConsoleSpeaker(), logg)

	go readStdin(ctx, agent, client, logg)

	logg.Info("pagedriver running", "tab", tabID, "url", startURL)
	if err := agent.Run(ctx); err != nil && ctx.Err() == nil {
		logg.Error("agent stopped", "error", err)
		os.Exit(1)
	}
}

// readStdin forwards plain lines as user transcripts. Lines starting with a
// slash drive switch scanning locally: /scan, /next, /prev, /select, /stop.
func readStdin(ctx context.Context, agent *pageagent.Agent, client *transport.Client, logg interface{ Warn(string, ...any) }) {
	fmt.Println("Type a command and press enter (e.g. \"where am I\"), or /scan to switch-scan:")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if err := runSwitchCommand(ctx, agent, line); err != nil {
				logg.Warn("switch command failed", "command", line, "error", err)
			}
			continue
		}
		if err := client.SendTranscript(line); err != nil {
			logg.Warn("transcript send failed", "error", err)
			return
		}
	}
}

func runSwitchCommand(ctx context.Context, agent *pageagent.Agent, line string) error {
	switch line {
	case "/scan":
		return agent.Switch.Start(ctx)
	case "/next":
		agent.Switch.Next()
	case "/prev":
		agent.Switch.Previous()
	case "/select":
		return agent.Switch.Select(ctx)
	case "/stop":
		agent.Switch.Stop()
	default:
		fmt.Println("switch commands: /scan /next /prev /select /stop")
	}
	return nil
}
