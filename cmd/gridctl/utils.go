// cmd/gridctl/utils.go

package main

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Color definitions for the interface
var (
	colorOK     = color.New(color.FgGreen, color.Bold).SprintFunc()
	colorErr    = color.New(color.FgRed, color.Bold).SprintFunc()
	colorPrompt = color.New(color.FgMagenta).SprintFunc()
	colorInfo   = color.New(color.FgBlue).SprintFunc()
)

// clearScreen clears the terminal screen.
func clearScreen() {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "cls")
	default:
		cmd = exec.Command("clear")
	}
	cmd.Stdout = os.Stdout
	_ = cmd.Run()
}

// getJSONPayload resolves inline JSON or a file: reference.
func getJSONPayload(payload string) ([]byte, error) {
	if strings.HasPrefix(payload, "file:") {
		return os.ReadFile(strings.TrimPrefix(payload, "file:"))
	}
	if payload == "" {
		return nil, fmt.Errorf("a JSON payload or file: reference is required")
	}
	return []byte(payload), nil
}

// adminResponse mirrors the server's administrative response wrapper.
type adminResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// printAdminResponse renders the wrapper, then the data payload as a
// table (falling back to pretty JSON).
func printAdminResponse(body []byte, status int) error {
	var resp adminResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		fmt.Printf("  %s %s\n", colorInfo("Raw response:"), string(body))
		return nil
	}

	statusText := colorOK("OK")
	if !resp.Success {
		statusText = colorErr(fmt.Sprintf("ERROR (%d)", status))
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Status", "Message"})
	table.Append([]string{statusText, resp.Message})
	table.Render()

	if resp.Data != nil {
		dataBytes, _ := json.Marshal(resp.Data)
		if err := printDynamicTable(dataBytes); err != nil {
			printPrettyJSON(dataBytes)
		}
	}
	fmt.Println("---")
	return nil
}

// printEnvelope renders one grid response: counts first, then rows.
func printEnvelope(body []byte) error {
	var envelope struct {
		Draw            int              `json:"draw"`
		RecordsTotal    int              `json:"recordsTotal"`
		RecordsFiltered int              `json:"recordsFiltered"`
		Data            []map[string]any `json:"data"`
		QueryStats      any              `json:"query_stats,omitempty"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("unexpected grid response: %w", err)
	}

	fmt.Println(colorInfo("Total: ", envelope.RecordsTotal, "  Filtered: ", envelope.RecordsFiltered, "  Rows: ", len(envelope.Data)))
	if len(envelope.Data) > 0 {
		rowBytes, _ := json.Marshal(envelope.Data)
		if err := printDynamicTable(rowBytes); err != nil {
			printPrettyJSON(rowBytes)
		}
	}
	if envelope.QueryStats != nil {
		statBytes, _ := json.Marshal(envelope.QueryStats)
		fmt.Println(colorInfo("Query stats:"))
		printPrettyJSON(statBytes)
	}
	fmt.Println("---")
	return nil
}

// printEditorResponse renders an editor body: returned rows, an error
// message, or a bare acknowledgement for remove.
func printEditorResponse(body []byte, status int) error {
	if status != http.StatusOK {
		return printAdminResponse(body, status)
	}
	var resp struct {
		Data  []map[string]any `json:"data"`
		Error string           `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("unexpected editor response: %w", err)
	}
	if resp.Error != "" {
		fmt.Println(colorErr("Editor error: ", resp.Error))
		return nil
	}
	if len(resp.Data) == 0 {
		fmt.Println(colorOK("Done."))
		return nil
	}
	rowBytes, _ := json.Marshal(resp.Data)
	if err := printDynamicTable(rowBytes); err != nil {
		printPrettyJSON(rowBytes)
	}
	fmt.Println("---")
	return nil
}

func printPrettyJSON(data []byte) {
	var pretty bytes.Buffer
	if err := stdjson.Indent(&pretty, data, "  ", "  "); err == nil {
		fmt.Printf("  %s\n%s\n", colorInfo("Data:"), pretty.String())
	} else {
		fmt.Printf("  %s %s\n", colorInfo("Data (Raw):"), string(data))
	}
}

// printDynamicTable attempts to render a slice of JSON objects as a formatted table.
func printDynamicTable(dataBytes []byte) error {
	// Attempt 1: an array of objects (multi-column table).
	var objectArrayResults []map[string]any
	if err := json.Unmarshal(dataBytes, &objectArrayResults); err == nil {
		if len(objectArrayResults) == 0 {
			return nil
		}
		headerSet := make(map[string]bool)
		for _, doc := range objectArrayResults {
			for key := range doc {
				headerSet[key] = true
			}
		}
		headers := make([]string, 0, len(headerSet))
		for key := range headerSet {
			headers = append(headers, key)
		}
		sort.Strings(headers)
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader(headers)
		table.SetAutoWrapText(false)
		for _, doc := range objectArrayResults {
			row := make([]string, len(headers))
			for i, header := range headers {
				if val, ok := doc[header]; ok {
					row[i] = cellString(val)
				} else {
					row[i] = "(n/a)"
				}
			}
			table.Append(row)
		}
		table.Render()
		return nil
	}

	// Attempt 2: a single object (Key-Value table).
	var singleObjectResult map[string]any
	if err := json.Unmarshal(dataBytes, &singleObjectResult); err == nil {
		if len(singleObjectResult) == 0 {
			return nil
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Key", "Value"})
		table.SetAutoWrapText(false)

		keys := make([]string, 0, len(singleObjectResult))
		for k := range singleObjectResult {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			table.Append([]string{k, cellString(singleObjectResult[k])})
		}
		table.Render()
		return nil
	}

	// Attempt 3: an array of simple values (single-column table).
	var simpleArrayResults []any
	if err := json.Unmarshal(dataBytes, &simpleArrayResults); err == nil {
		if len(simpleArrayResults) == 0 {
			return nil
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Value"})
		for _, item := range simpleArrayResults {
			table.Append([]string{fmt.Sprintf("%v", item)})
		}
		table.Render()
		return nil
	}

	return fmt.Errorf("data is not tabular")
}

func cellString(val any) string {
	switch v := val.(type) {
	case map[string]any, []any:
		jsonVal, _ := json.MarshalIndent(v, "", "  ")
		return string(jsonVal)
	case nil:
		return "(nil)"
	default:
		return fmt.Sprintf("%v", v)
	}
}
