package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/kodokojo/eventgate/internal/domain/model"
	"github.com/urfave/cli/v2"
)

// statsPayload mirrors the stats endpoint's response body.
type statsPayload struct {
	Registry        model.RegistryStats `json:"registry"`
	PendingRequests int                 `json:"pending_requests"`
}

// monitorCmd renders a small live dashboard from a running gateway's stats
// endpoint.
func monitorCmd() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Live terminal dashboard for a running gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Base URL of the gateway",
				Value: "http://localhost:8080",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Polling interval",
				Value: time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			if err := ui.Init(); err != nil {
				return fmt.Errorf("monitor: init ui: %w", err)
			}
			defer ui.Close()

			summary := widgets.NewParagraph()
			summary.Title = "eventgate"
			summary.SetRect(0, 0, 60, 8)

			sessions := widgets.NewBarChart()
			sessions.Title = "sessions"
			sessions.Labels = []string{"users", "sessions", "handshakes", "pending req"}
			sessions.SetRect(0, 8, 60, 20)
			sessions.BarWidth = 9

			client := &http.Client{Timeout: 5 * time.Second}
			draw := func() {
				stats, err := fetchStats(client, c.String("addr"))
				if err != nil {
					summary.Text = fmt.Sprintf("unreachable: %v", err)
					ui.Render(summary)
					return
				}
				summary.Text = fmt.Sprintf(
					"uptime: %s\nconnected users: %d\nlive sessions: %d\npending handshakes: %d\npending requests: %d",
					stats.Registry.Uptime.Round(time.Second),
					stats.Registry.ConnectedUsers,
					stats.Registry.TotalSessions,
					stats.Registry.PendingHandshakes,
					stats.PendingRequests,
				)
				sessions.Data = []float64{
					float64(stats.Registry.ConnectedUsers),
					float64(stats.Registry.TotalSessions),
					float64(stats.Registry.PendingHandshakes),
					float64(stats.PendingRequests),
				}
				ui.Render(summary, sessions)
			}
			draw()

			events := ui.PollEvents()
			ticker := time.NewTicker(c.Duration("interval"))
			defer ticker.Stop()

			for {
				select {
				case e := <-events:
					if e.Type == ui.KeyboardEvent && (e.ID == "q" || e.ID == "<C-c>") {
						return nil
					}
				case <-ticker.C:
					draw()
				}
			}
		},
	}
}

func fetchStats(client *http.Client, baseURL string) (*statsPayload, error) {
	res, err := client.Get(baseURL + "/stats")
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	var stats statsPayload
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
