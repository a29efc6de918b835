package source

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alvmarrod/hub-weaver/internal/graph"
)

// FixtureUser is one account of an offline fixture
type FixtureUser struct {
	ID         graph.UserID   `json:"id"`
	Name       string         `json:"name"`
	ScreenName string         `json:"screen_name"`
	Outbound   []graph.UserID `json:"outbound"`
	Inbound    []graph.UserID `json:"inbound"`
}

// Fixture describes a complete network served by a Memory source
type Fixture struct {
	Users []FixtureUser `json:"users"`
}

// LoadFixture reads a JSON fixture file and builds a Memory source from it
func LoadFixture(path string) (*Memory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer file.Close()

	var fx Fixture
	if err := json.NewDecoder(file).Decode(&fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture JSON: %w", err)
	}

	return fx.Source(), nil
}

// Source builds a Memory source serving the fixture
func (fx Fixture) Source() *Memory {
	m := NewMemory()
	for _, u := range fx.Users {
		m.AddUser(User{ID: u.ID, Name: u.Name, ScreenName: u.ScreenName})
		m.SetRelations(Outbound, u.ID, u.Outbound...)
		m.SetRelations(Inbound, u.ID, u.Inbound...)
	}
	return m
}
