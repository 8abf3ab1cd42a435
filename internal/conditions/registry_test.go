package conditions

import (
	"errors"
	"strings"
	"testing"

	"github.com/solatis/conditions/internal/types"
)

func testDefinitions() Definitions {
	return Definitions{
		"numbers": {
			"gt":    Number,
			"score": Restrict(Number, "score"),
		},
		"user": {
			"email":  Restrict(Text, "user.email", "user.alt_email"),
			"exists": Exists,
		},
		"flags": {
			"always": Always,
			"never":  Never,
		},
	}
}

func TestDefinitions_Lookup(t *testing.T) {
	defs := testDefinitions()

	tests := []struct {
		name      string
		group     string
		condstr   string
		wantErr   error
		wantField string
		mentions  string
	}{
		{name: "found", group: "numbers", condstr: "gt"},
		{name: "unknown group", group: "strings", condstr: "gt", wantErr: types.ErrUnknownGroup, wantField: "group", mentions: `"strings"`},
		{name: "unknown condstr", group: "numbers", condstr: "unknown", wantErr: types.ErrUnknownCondition, wantField: "condstr", mentions: `"unknown"`},
		{name: "case sensitive group", group: "Numbers", condstr: "gt", wantErr: types.ErrUnknownGroup, wantField: "group", mentions: `"Numbers"`},
		{name: "case sensitive condstr", group: "numbers", condstr: "GT", wantErr: types.ErrUnknownCondition, wantField: "condstr", mentions: `"GT"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, err := defs.Lookup(tt.group, tt.condstr)
			if tt.wantErr == nil {
				if err != nil || typ == nil {
					t.Fatalf("Lookup() = %v, %v, want type, nil", typ, err)
				}
				return
			}
			var invalid *types.InvalidConditionError
			if !errors.As(err, &invalid) || !errors.Is(err, tt.wantErr) {
				t.Fatalf("Lookup() error = %v, want InvalidConditionError wrapping %v", err, tt.wantErr)
			}
			if invalid.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", invalid.Field, tt.wantField)
			}
			if !strings.Contains(err.Error(), tt.mentions) {
				t.Errorf("Error() = %q, want mention of %s", err.Error(), tt.mentions)
			}
		})
	}
}

func TestDefinitions_Validate(t *testing.T) {
	if err := testDefinitions().Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}

	tests := []struct {
		name string
		defs Definitions
	}{
		{name: "empty group", defs: Definitions{"": {"a": Always}}},
		{name: "empty condstr", defs: Definitions{"g": {"": Always}}},
		{name: "nil type", defs: Definitions{"g": {"a": nil}}},
		{name: "compare without operators", defs: Definitions{"g": {"a": &CompareKind{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.defs.Validate(); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
}

func TestDefinitions_Describe(t *testing.T) {
	got := testDefinitions().Describe()

	wantGroups := []string{"flags", "numbers", "user"}
	if len(got) != len(wantGroups) {
		t.Fatalf("Describe() returned %d groups, want %d", len(got), len(wantGroups))
	}
	for i, g := range wantGroups {
		if got[i].Groupname != g {
			t.Errorf("group[%d] = %q, want %q", i, got[i].Groupname, g)
		}
	}

	user := got[2]
	if len(user.Conditions) != 2 || user.Conditions[0].Condstr != "email" || user.Conditions[1].Condstr != "exists" {
		t.Fatalf("user conditions = %+v, want [email exists]", user.Conditions)
	}

	email := user.Conditions[0]
	if !email.KeyRequired || !email.OperatorRequired {
		t.Errorf("email KeyRequired/OperatorRequired = %v/%v, want true/true", email.KeyRequired, email.OperatorRequired)
	}
	if email.KeyExample != "user.email" {
		t.Errorf("email KeyExample = %q, want user.email", email.KeyExample)
	}
	if len(email.KeysAllowed) != 2 {
		t.Errorf("email KeysAllowed = %v, want 2 keys", email.KeysAllowed)
	}
	if len(email.Operators) == 0 || email.Operators[0] != "contains" {
		t.Errorf("email Operators = %v, want sorted list starting with contains", email.Operators)
	}

	exists := user.Conditions[1]
	if exists.OperatorRequired || len(exists.Operators) != 0 || exists.OperandExample != nil {
		t.Errorf("exists description = %+v, want no operator surface", exists)
	}
	if exists.HelpText == "" {
		t.Error("exists HelpText is empty")
	}
}

func TestBuildDefinitions(t *testing.T) {
	cfg := DefinitionsConfig{
		"orders": {
			"total":  {Kind: KindNumber, Keys: []string{"order.total"}},
			"status": {Kind: KindText},
		},
		"misc": {
			"always": {Kind: KindAlways},
		},
	}

	defs, err := BuildDefinitions(cfg, Builtins())
	if err != nil {
		t.Fatalf("BuildDefinitions() error = %v", err)
	}

	total, err := defs.Lookup("orders", "total")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got := total.KeysAllowed(); len(got) != 1 || got[0] != "order.total" {
		t.Errorf("KeysAllowed() = %v, want [order.total]", got)
	}
	if _, err := New(total, cmpArgs("order.count", OpGt, 1)); !errors.Is(err, types.ErrKeyNotAllowed) {
		t.Errorf("New() error = %v, want ErrKeyNotAllowed", err)
	}
	if status, _ := defs.Lookup("orders", "status"); status != Text {
		t.Errorf("status type = %v, want Text", status)
	}

	_, err = BuildDefinitions(DefinitionsConfig{"g": {"x": {Kind: "nope"}}}, Builtins())
	if err == nil || !strings.Contains(err.Error(), `"nope"`) {
		t.Errorf("BuildDefinitions(unknown kind) error = %v, want mention of \"nope\"", err)
	}
}

func TestBuiltins_ReturnsCopy(t *testing.T) {
	catalog := Builtins()
	delete(catalog, KindNumber)
	if _, ok := Builtins()[KindNumber]; !ok {
		t.Error("Builtins() shares its map with callers")
	}
	if len(BuiltinDefinitions()["builtin"]) != 10 {
		t.Errorf("BuiltinDefinitions() has %d types, want 10", len(BuiltinDefinitions()["builtin"]))
	}
}
