package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/evalrunner/internal/adapters/backend"
	"github.com/jbctechsolutions/evalrunner/internal/presentation/cli/output"
)

// BackendStatus represents the health of a single backend.
type BackendStatus struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	Local    bool   `json:"local"`
	Default  bool   `json:"default"`
	Status   string `json:"status"`
	Latency  string `json:"latency,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SystemStatus represents the overall health status.
type SystemStatus struct {
	Status   string          `json:"status"`
	Version  string          `json:"version"`
	Backends []BackendStatus `json:"backends"`
}

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show inference backend health",
		Long: `Check every configured inference backend and report whether it is reachable
and ready to serve. The active backend is marked with *.`,
		Example: `  evalrunner status
  evalrunner status -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout for each backend health check")

	return cmd
}

func runStatus(cmd *cobra.Command, timeout time.Duration) error {
	formatter := GetFormatter()
	container, err := requireContainer()
	if err != nil {
		return err
	}

	reports := container.BackendRegistry().CheckAll(cmd.Context(), timeout)
	status := buildSystemStatus(reports, container.Config().Backend.Default)

	return formatter.Render(status, func() error {
		return printStatusText(formatter, status)
	})
}

func buildSystemStatus(reports []backend.HealthReport, active string) SystemStatus {
	status := SystemStatus{
		Version:  Version,
		Backends: make([]BackendStatus, 0, len(reports)),
	}

	for _, r := range reports {
		bs := BackendStatus{
			Name:     r.Name,
			Endpoint: r.Info.BaseURL,
			Local:    r.Info.IsLocal,
			Default:  r.Name == active,
			Status:   "unhealthy",
		}

		switch {
		case r.Err != nil:
			bs.Error = r.Err.Error()
		case r.Status == nil:
			bs.Error = "no status reported"
		default:
			bs.Latency = r.Status.Latency.Round(time.Millisecond).String()
			if r.Status.Healthy {
				bs.Status = "healthy"
			} else {
				bs.Error = r.Status.Message
			}
		}

		status.Backends = append(status.Backends, bs)
	}

	status.Status = determineOverallStatus(status.Backends)
	return status
}

// determineOverallStatus is healthy when the active backend is healthy,
// degraded when only other backends are, and unhealthy otherwise.
func determineOverallStatus(backends []BackendStatus) string {
	anyHealthy := false
	for _, b := range backends {
		if b.Status != "healthy" {
			continue
		}
		if b.Default {
			return "healthy"
		}
		anyHealthy = true
	}
	if anyHealthy {
		return "degraded"
	}
	return "unhealthy"
}

func printStatusText(formatter *output.Formatter, status SystemStatus) error {
	_ = formatter.Header("evalrunner status")
	_ = formatter.Item("Overall", formatter.Health(status.Status))
	_ = formatter.Item("Version", status.Version)
	_ = formatter.Println("")

	rows := make([][]string, 0, len(status.Backends))
	for _, b := range status.Backends {
		name := b.Name
		if b.Default {
			name += " *"
		}
		detail := b.Latency
		if b.Error != "" {
			detail = b.Error
		}
		rows = append(rows, []string{name, b.Endpoint, formatter.Health(b.Status), detail})
	}

	return formatter.Table(output.TableData{
		Columns: []output.TableColumn{
			{Header: "BACKEND"},
			{Header: "ENDPOINT"},
			{Header: "STATUS"},
			{Header: "DETAIL"},
		},
		Rows: rows,
	})
}
