package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ConnectionMeta is the JSON object in front of the first '%' of a
// connection's data, e.g. {"clientData":"Alice","main":true}%1.
type ConnectionMeta struct {
	ClientData string `json:"clientData"`
	Main       bool   `json:"main"`
}

// ParseConnectionData extracts the connection metadata. When the prefix is
// not a JSON object the raw prefix becomes ClientData, Main is false and the
// parse error is returned alongside.
func ParseConnectionData(data string) (ConnectionMeta, error) {
	prefix, _, _ := strings.Cut(data, "%")

	var meta ConnectionMeta
	if err := json.Unmarshal([]byte(prefix), &meta); err != nil {
		return ConnectionMeta{ClientData: prefix}, fmt.Errorf("parse connection data: %w", err)
	}
	return meta, nil
}

// FormatConnectionData encodes meta as the data a client connects with.
func FormatConnectionData(meta ConnectionMeta) string {
	data, err := json.Marshal(meta)
	if err != nil {
		// two plain fields, cannot fail
		panic(err)
	}
	return string(data)
}
