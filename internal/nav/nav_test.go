package nav

import (
	"encoding/json"
	"testing"

	"golang.org/x/text/language"
)

func TestMachineStartsAtHome(t *testing.T) {
	if got := NewMachine().Active(); got != Home {
		t.Fatalf("expected home, got %s", got)
	}
}

func TestSelectScenario(t *testing.T) {
	m := NewMachine()

	out := m.Select("Souscriptions")
	if out.Panel != Subscription || !out.Changed || !out.Known {
		t.Fatalf("unexpected outcome %+v", out)
	}

	out = m.Select("Vault MultiSig")
	if out.Panel != Vault || !out.Changed {
		t.Fatalf("unexpected outcome %+v", out)
	}

	out = m.Select("InvalidName")
	if out.Known || out.Changed || out.Panel != Vault {
		t.Fatalf("unknown label must be a no-op, got %+v", out)
	}
	if m.Active() != Vault {
		t.Fatalf("expected vault, got %s", m.Active())
	}
}

func TestSelectIsIdempotent(t *testing.T) {
	m := NewMachine()
	m.Select("Approve")

	out := m.Select("Approve")
	if out.Changed {
		t.Fatalf("reselecting the active panel must not report a change")
	}
	if out.Panel != Approve || m.Active() != Approve {
		t.Fatalf("expected approve, got %s", m.Active())
	}
}

func TestSelectLogoutDoesNotMove(t *testing.T) {
	m := NewMachine()
	m.Select("Souscriptions")

	out := m.Select("Déconnexion")
	if !out.Logout || out.Changed {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if m.Active() != Subscription {
		t.Fatalf("logout moved the machine to %s", m.Active())
	}
}

func TestSelectEnglishLabels(t *testing.T) {
	m := NewMachine()
	if out := m.Select("MultiSig Vault"); out.Panel != Vault {
		t.Fatalf("expected vault, got %+v", out)
	}
	if out := m.Select("Log out"); !out.Logout {
		t.Fatalf("expected logout, got %+v", out)
	}
}

func TestSelectPanelRejectsInvalid(t *testing.T) {
	m := NewMachine()
	if out := m.SelectPanel(Panel(42)); out.Known || out.Panel != Home {
		t.Fatalf("invalid panel must be a no-op, got %+v", out)
	}
}

func TestLabels(t *testing.T) {
	cases := []struct {
		item Item
		fr   string
		en   string
	}{
		{Item{Panel: Home}, "Accueil", "Home"},
		{Item{Panel: Subscription}, "Souscriptions", "Subscriptions"},
		{Item{Panel: Vault}, "Vault MultiSig", "MultiSig Vault"},
		{Item{Panel: Approve}, "Approve", "Approve"},
		{LogoutItem, "Déconnexion", "Log out"},
	}
	for _, tc := range cases {
		if got := Label(tc.item, language.French); got != tc.fr {
			t.Errorf("fr label %s: got %q want %q", tc.item.key(), got, tc.fr)
		}
		if got := Label(tc.item, language.English); got != tc.en {
			t.Errorf("en label %s: got %q want %q", tc.item.key(), got, tc.en)
		}
	}
}

func TestSidebarGate(t *testing.T) {
	full := Sidebar(Gate{}, Vault, language.French)
	if len(full) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(full))
	}
	if !full[2].Active || full[2].Label != "Vault MultiSig" {
		t.Fatalf("expected vault entry active, got %+v", full[2])
	}
	if !full[4].Item.Logout {
		t.Fatalf("logout must be the last entry")
	}

	gated := Sidebar(Gate{ProtectedWallet: true}, Approve, language.French)
	if len(gated) != 2 {
		t.Fatalf("expected approve and logout only, got %+v", gated)
	}
	if gated[0].Item.Panel != Approve || !gated[0].Active {
		t.Fatalf("expected active approve entry, got %+v", gated[0])
	}

	g := Gate{ProtectedWallet: true}
	if g.Allows(Item{Panel: Home}) {
		t.Fatalf("gated session must not reach home")
	}
	if !g.Allows(LogoutItem) || !g.Allows(Item{Panel: Approve}) {
		t.Fatalf("gated session must reach approve and logout")
	}
}

func TestPanelJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Panel{"active": Vault})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"active":"vault"}` {
		t.Fatalf("unexpected json %s", b)
	}

	var decoded struct {
		Active Panel `json:"active"`
	}
	if err := json.Unmarshal([]byte(`{"active":"approve"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Active != Approve {
		t.Fatalf("expected approve, got %s", decoded.Active)
	}
}
