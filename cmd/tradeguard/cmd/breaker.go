package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var breakerCmd = &cobra.Command{
	Use:   "breaker",
	Short: "Inspect and override the breakers of a running server",
	Long: `Talk to a running "tradeguard serve" instance.

Subcommands:
  status [name] - Show one or all breakers
  open <name>   - Force a breaker open
  close <name>  - Force a breaker closed
  reset         - Close every breaker

Examples:
  tradeguard breaker status
  tradeguard breaker open alpaca --server http://127.0.0.1:8090`,
}

var breakerStatusCmd = &cobra.Command{
	Use:   "status [name]",
	Short: "Show one or all breakers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/breakers"
		if len(args) == 1 {
			path += "/" + args[0]
		}
		return breakerRequest(cmd, http.MethodGet, path)
	},
}

var breakerOpenCmd = &cobra.Command{
	Use:   "open <name>",
	Short: "Force a breaker open",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return breakerRequest(cmd, http.MethodPost, "/breakers/"+args[0]+"/open")
	},
}

var breakerCloseCmd = &cobra.Command{
	Use:   "close <name>",
	Short: "Force a breaker closed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return breakerRequest(cmd, http.MethodPost, "/breakers/"+args[0]+"/close")
	},
}

var breakerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Close every breaker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return breakerRequest(cmd, http.MethodPost, "/breakers/reset")
	},
}

var breakerServer string

func init() {
	rootCmd.AddCommand(breakerCmd)
	breakerCmd.AddCommand(breakerStatusCmd, breakerOpenCmd, breakerCloseCmd, breakerResetCmd)

	breakerCmd.PersistentFlags().StringVar(&breakerServer, "server", "", "server URL (default http://<server.addr>)")
}

// breakerView decodes the status JSON without needing State to unmarshal.
type breakerView struct {
	Name             string     `json:"name"`
	State            string     `json:"state"`
	FailureCount     int        `json:"failure_count"`
	FailureThreshold int        `json:"failure_threshold"`
	LastFailureTime  *time.Time `json:"last_failure_time"`
	RetryIn          *float64   `json:"retry_in"`
}

func (v breakerView) String() string {
	s := fmt.Sprintf("%-8s %-9s failures %d/%d", v.Name, v.State, v.FailureCount, v.FailureThreshold)
	if v.RetryIn != nil {
		s += fmt.Sprintf("  retry in %.0fs", *v.RetryIn)
	}
	return s
}

func breakerRequest(cmd *cobra.Command, method, path string) error {
	base := breakerServer
	if base == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		base = "http://" + cfg.Server.Addr
	}

	req, err := http.NewRequestWithContext(cmd.Context(), method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %s %s", method, path, resp.Status, e.Error)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	var many []breakerView
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, v := range many {
			fmt.Println(v)
		}
		return nil
	}
	var one breakerView
	if err := json.Unmarshal(raw, &one); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	fmt.Println(one)
	return nil
}
