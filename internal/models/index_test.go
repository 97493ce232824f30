package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAccountIndexPreservesUnknownFields(t *testing.T) {
	raw := `{
		"version": "2.0",
		"accounts": [{"id": "a1", "email": "a@example.com", "disabled": false, "proxy_disabled": false, "protected_models": [], "created_at": 1, "last_used": 2}],
		"current_account_id": "a1",
		"future_field": {"nested": true},
		"another": 42
	}`

	var idx AccountIndex
	if err := json.Unmarshal([]byte(raw), &idx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if idx.Version != "2.0" {
		t.Errorf("version = %q, want 2.0", idx.Version)
	}
	if len(idx.Accounts) != 1 || idx.Accounts[0].ID != "a1" {
		t.Fatalf("accounts = %+v", idx.Accounts)
	}
	if idx.CurrentAccountID == nil || *idx.CurrentAccountID != "a1" {
		t.Errorf("current = %v", idx.CurrentAccountID)
	}

	idx.Accounts[0].LastUsed = 99
	out, err := json.Marshal(&idx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"future_field":{"nested":true}`, `"another":42`, `"last_used":99`} {
		if !strings.Contains(string(out), want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestAccountIndexNullCurrent(t *testing.T) {
	idx := NewAccountIndex()
	out, err := json.Marshal(idx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"current_account_id":null`) {
		t.Errorf("want explicit null current_account_id, got %s", out)
	}
	if !strings.Contains(string(out), `"accounts":[]`) {
		t.Errorf("want empty accounts array, got %s", out)
	}
}

func TestAccountIndexRemove(t *testing.T) {
	idx := NewAccountIndex()
	idx.Accounts = []AccountSummary{{ID: "a"}, {ID: "b"}}
	idx.SetCurrent("b")

	if !idx.Remove("b") {
		t.Fatal("remove existing returned false")
	}
	if idx.CurrentAccountID != nil {
		t.Errorf("current not cleared after removing current account")
	}
	if idx.Remove("missing") {
		t.Error("remove missing returned true")
	}
	if len(idx.Accounts) != 1 || idx.Accounts[0].ID != "a" {
		t.Errorf("accounts = %+v", idx.Accounts)
	}
}

func TestModelSetRoundTrip(t *testing.T) {
	s := NewModelSet("b-model", "a-model")
	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `["a-model","b-model"]` {
		t.Errorf("marshal = %s, want sorted array", out)
	}

	var back ModelSet
	if err := json.Unmarshal([]byte(`null`), &back); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	back.Add("x")
	if !back.Has("x") {
		t.Error("Add on nil-backed set did not stick")
	}
	back.Remove("x")
	if back.Has("x") {
		t.Error("Remove did not delete")
	}
}

func TestAccountSummaryProjection(t *testing.T) {
	acct := NewAccount("id1", "u@example.com", NewTokenData("at", "rt", 3600, "u@example.com", "", ""))
	acct.Name = "User"
	acct.ProtectedModels.Add("gemini-3-pro-high")

	sum := acct.Summary()
	if sum.ID != "id1" || sum.Email != "u@example.com" || sum.Name != "User" {
		t.Errorf("summary = %+v", sum)
	}
	if !sum.ProtectedModels.Has("gemini-3-pro-high") {
		t.Error("protected models not mirrored")
	}
	sum.ProtectedModels.Add("other")
	if acct.ProtectedModels.Has("other") {
		t.Error("summary set aliases the account set")
	}
}
