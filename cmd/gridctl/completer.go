// cmd/gridctl/completer.go

package main

import (
	"net/http"

	"github.com/chzyer/readline"
)

func (c *cli) getCompleter() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("query", readline.PcItemDynamic(c.fetchCollectionNames)),
		readline.PcItem("create", readline.PcItemDynamic(c.fetchCollectionNames)),
		readline.PcItem("edit", readline.PcItemDynamic(c.fetchCollectionNames)),
		readline.PcItem("remove", readline.PcItemDynamic(c.fetchCollectionNames)),
		readline.PcItem("seed", readline.PcItemDynamic(c.fetchCollectionNames)),
		readline.PcItem("index", readline.PcItemDynamic(c.fetchCollectionNames)),
		readline.PcItem("textindex", readline.PcItemDynamic(c.fetchCollectionNames)),
		readline.PcItem("collections"),
		readline.PcItem("help"),
		readline.PcItem("clear"),
		readline.PcItem("exit"),
	)
}

// fetchCollectionNames feeds the completer from the server. Failures
// just mean no suggestions.
func (c *cli) fetchCollectionNames(string) []string {
	body, status, err := c.doRequest(http.MethodGet, "/collections", nil)
	if err != nil || status != http.StatusOK {
		return nil
	}
	var resp struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}
	return resp.Data
}
