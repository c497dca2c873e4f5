// Package schema is the compile-time field descriptor table for the
// master-server's filterable server schema. It replaces reflection-based
// property discovery with a closed, static namespace: each field a client
// filter may reference is declared once here, the way the teacher's
// WellKnownAttrs and FlagTable declare their own closed namespaces.
package schema

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Kind is the scalar type a field carries.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
)

// GameServer is one registered game server record.
type GameServer struct {
	IP        net.IP
	QueryPort uint16
	GamePort  uint16

	Hostname       string
	GameType       string
	MapName        string
	GameVariant    string
	NumPlayers     uint8
	MaxPlayers     uint8
	RoundTime      uint16
	ConnectionType string
	Password       bool
	Ranked         bool
	PunkBuster     bool
	Dedicated      bool

	LastRefreshed time.Time
	IsValidated   bool
	DatabaseID    int
}

// Key identifies a server uniquely in the Registry: (ip, queryPort).
func (s *GameServer) Key() string {
	return s.IP.String() + ":" + strconv.Itoa(int(s.QueryPort))
}

// FieldDescriptor describes one property of the filterable schema.
type FieldDescriptor struct {
	Name       string
	Kind       Kind
	Filterable bool
	Get        func(*GameServer) any
}

// Fields is the static, build-time schema, keyed by lowercase name.
// Only entries with Filterable=true may be referenced in a client filter;
// all entries (filterable or not) may be requested as response columns.
var Fields = map[string]*FieldDescriptor{
	"hostname":       {Name: "hostname", Kind: KindString, Filterable: true, Get: func(s *GameServer) any { return s.Hostname }},
	"gametype":       {Name: "gametype", Kind: KindString, Filterable: true, Get: func(s *GameServer) any { return s.GameType }},
	"mapname":        {Name: "mapname", Kind: KindString, Filterable: true, Get: func(s *GameServer) any { return s.MapName }},
	"gamevariant":    {Name: "gamevariant", Kind: KindString, Filterable: true, Get: func(s *GameServer) any { return s.GameVariant }},
	"numplayers":     {Name: "numplayers", Kind: KindInt, Filterable: true, Get: func(s *GameServer) any { return int(s.NumPlayers) }},
	"maxplayers":     {Name: "maxplayers", Kind: KindInt, Filterable: true, Get: func(s *GameServer) any { return int(s.MaxPlayers) }},
	"roundtime":      {Name: "roundtime", Kind: KindInt, Filterable: true, Get: func(s *GameServer) any { return int(s.RoundTime) }},
	"connectiontype": {Name: "connectiontype", Kind: KindString, Filterable: true, Get: func(s *GameServer) any { return s.ConnectionType }},
	"password":       {Name: "password", Kind: KindBool, Filterable: true, Get: func(s *GameServer) any { return s.Password }},
	"ranked":         {Name: "ranked", Kind: KindBool, Filterable: true, Get: func(s *GameServer) any { return s.Ranked }},
	"punkbuster":     {Name: "punkbuster", Kind: KindBool, Filterable: true, Get: func(s *GameServer) any { return s.PunkBuster }},
	"dedicated":      {Name: "dedicated", Kind: KindBool, Filterable: true, Get: func(s *GameServer) any { return s.Dedicated }},

	// Present in the schema (may be requested as a response column) but not
	// filterable — a client filter referencing these is an EvaluatorError (S4).
	"databaseid": {Name: "databaseid", Kind: KindInt, Filterable: false, Get: func(s *GameServer) any { return s.DatabaseID }},
	"gameport":   {Name: "gameport", Kind: KindInt, Filterable: false, Get: func(s *GameServer) any { return int(s.GamePort) }},
	"queryport":  {Name: "queryport", Kind: KindInt, Filterable: false, Get: func(s *GameServer) any { return int(s.QueryPort) }},
}

// Lookup resolves a field name (case-insensitive) to its descriptor.
func Lookup(name string) (*FieldDescriptor, bool) {
	fd, ok := Fields[strings.ToLower(strings.TrimSpace(name))]
	return fd, ok
}

// IsFilterable reports whether name is both known and legal in a client filter.
func IsFilterable(name string) bool {
	fd, ok := Lookup(name)
	return ok && fd.Filterable
}

// HasField reports whether name is a known field, filterable or not.
func HasField(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// FormatValue renders a server's field value for the wire, per the List
// Encoder's field-value formatting rule: booleans render "1"/"0", missing
// values render empty, everything else renders as decimal or UTF-8 text.
func FormatValue(name string, s *GameServer) string {
	fd, ok := Lookup(name)
	if !ok || s == nil {
		return ""
	}
	v := fd.Get(s)
	switch fd.Kind {
	case KindBool:
		if b, _ := v.(bool); b {
			return "1"
		}
		return "0"
	case KindInt:
		return fmt.Sprintf("%v", v)
	default:
		if str, _ := v.(string); str != "" {
			return str
		}
		return ""
	}
}
