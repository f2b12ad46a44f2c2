// Package main implements the circtl CLI for staff operations against
// the circd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the circd HTTP server
	serverURL string
	// staffUser identifies the operator in audit records
	staffUser string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "circtl",
	Short: "CLI for circd circulation operations",
	Long: `circtl is a command-line interface for the circd daemon.
It drives checkout, checkin, holds shelf maintenance, and health checks
against a running circd instance.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8642", "circd server URL")
	rootCmd.PersistentFlags().StringVar(&staffUser, "staff", "", "staff username recorded in audit events")
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(checkinCmd)
	rootCmd.AddCommand(clearShelfCmd)
	rootCmd.AddCommand(shelfExpiredCmd)
	rootCmd.AddCommand(healthCmd)
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout <patron-barcode> <item-barcode>",
	Short: "Check an item out to a patron",
	Long: `Check an item out to a patron.

Examples:
  # Check item I200 out to patron P100
  circtl checkout P100 I200

  # Retry a business rejection with an override
  circtl checkout --override P100 I200`,
	Args: cobra.ExactArgs(2),
	RunE: runCheckout,
}

var checkinCmd = &cobra.Command{
	Use:   "checkin <item-barcode>",
	Short: "Check an item back in",
	Long: `Check an item back in and report where it goes next:
back to the shelf, captured for a hold, or into transit.

Examples:
  circtl checkin I200`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckin,
}

var clearShelfCmd = &cobra.Command{
	Use:   "clear-shelf <org-id>",
	Short: "Start a pickup-shelf sweep for an org",
	Long: `Ask the backend to process an org's expired pickup shelf.
The sweep runs asynchronously; poll with "circtl shelf-expired" to
watch it drain.

Examples:
  circtl clear-shelf 3`,
	Args: cobra.ExactArgs(1),
	RunE: runClearShelf,
}

var shelfExpiredCmd = &cobra.Command{
	Use:   "shelf-expired <org-id>",
	Short: "List holds expired on an org's pickup shelf",
	Args:  cobra.ExactArgs(1),
	RunE:  runShelfExpired,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check circd server health",
	RunE:  runHealth,
}

var overrideFlag bool

func init() {
	checkoutCmd.Flags().BoolVar(&overrideFlag, "override", false, "retry the override-capable method variant on an eligible rejection")
}

func runCheckout(cmd *cobra.Command, args []string) error {
	body := map[string]any{
		"action":        "checkout",
		"patronBarcode": args[0],
		"itemBarcode":   args[1],
		"override":      overrideFlag,
	}
	out, err := postJSON("/api/v1/circulation", body)
	if err != nil {
		return err
	}

	if circData, ok := out["circ"].(map[string]any); ok {
		fmt.Printf("Checked out: circulation %v", circData["id"])
		if due, ok := circData["dueDate"].(string); ok {
			fmt.Printf(", due %s", due)
		}
		fmt.Println()
	} else {
		fmt.Println("Checked out")
	}
	return nil
}

func runCheckin(cmd *cobra.Command, args []string) error {
	out, err := postJSON("/api/v1/circulation", map[string]any{
		"action":      "checkin",
		"itemBarcode": args[0],
	})
	if err != nil {
		return err
	}

	status, _ := out["status"].(string)
	switch status {
	case "hold_captured":
		hold, _ := out["hold"].(map[string]any)
		fmt.Printf("Captured for hold %v (patron %v)\n", hold["id"], hold["patronId"])
	case "in_transit":
		fmt.Printf("In transit to org %v\n", out["destOrg"])
	default:
		fmt.Println("Reshelve")
		if overdue, ok := out["wasOverdue"].(bool); ok && overdue {
			fmt.Println("Item was overdue")
		}
	}
	return nil
}

func runClearShelf(cmd *cobra.Command, args []string) error {
	orgID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("org id must be an integer: %q", args[0])
	}
	_, err = postJSON("/api/v1/holds", map[string]any{
		"action": "clear_shelf",
		"orgId":  orgID,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Shelf sweep started for org %s; poll with: circtl shelf-expired %s\n", args[0], args[0])
	return nil
}

func runShelfExpired(cmd *cobra.Command, args []string) error {
	out, err := getJSON("/api/v1/holds/shelf-expired?org=" + args[0])
	if err != nil {
		return err
	}

	holds, _ := out["holds"].([]any)
	if len(holds) == 0 {
		fmt.Println("No expired holds on the shelf")
		return nil
	}
	for _, raw := range holds {
		h, _ := raw.(map[string]any)
		fmt.Printf("hold %v  patron %v  expired %v\n", h["id"], h["patronId"], h["shelfExpireTime"])
	}
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	out, err := getJSON("/health")
	if err != nil {
		return err
	}
	fmt.Printf("Server Status: %v\n", out["status"])
	return nil
}

// postJSON sends a mutating request with a fresh idempotency token and
// decodes the envelope, turning {"ok":false} replies into errors.
func postJSON(path string, body map[string]any) (map[string]any, error) {
	reqJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, serverURL+path, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	if staffUser != "" {
		req.Header.Set("X-Staff-Username", staffUser)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", serverURL+path, err)
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp)
}

func getJSON(path string) (map[string]any, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(serverURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", serverURL+path, err)
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp)
}

func decodeEnvelope(resp *http.Response) (map[string]any, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, err)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(raw))
	}

	if ok, _ := out["ok"].(bool); !ok && out["ok"] != nil {
		msg, _ := out["error"].(string)
		if details, has := out["details"].(map[string]any); has {
			if perm, ok := details["overridePerm"].(string); ok && perm != "" {
				return nil, fmt.Errorf("%s (retry with --override, needs %s)", msg, perm)
			}
			return nil, fmt.Errorf("%s (%v)", msg, details)
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return out, nil
}
