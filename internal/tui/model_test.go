package tui

import (
	"context"
	"math/big"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dmsd/dmsd/internal/contract"
	"github.com/dmsd/dmsd/internal/dashboard"
	"github.com/dmsd/dmsd/internal/nav"
	"github.com/dmsd/dmsd/internal/wallet"
)

var testContract = common.HexToAddress("0x65aCd2dD683E6F3E803393CD6A75782Ab806A447")

func newSigner(t *testing.T) *wallet.KeySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return wallet.NewKeySigner(key, big.NewInt(31337))
}

func setupModel(t *testing.T) (Model, *dashboard.Dashboard) {
	t.Helper()
	signer := newSigner(t)
	keys, err := wallet.NewKeyring(big.NewInt(31337), nil)
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	keys.Add(signer)

	d := dashboard.New("tui", testContract, dashboard.Deps{Contract: contract.NewMemory(testContract), Signers: keys})
	t.Cleanup(func() {
		d.Close()
		d.Wait()
	})
	if err := d.Connect(context.Background(), signer.Address()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	m := New(context.Background(), d)
	t.Cleanup(m.Close)
	return m, d
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", next)
	}
	return out, cmd
}

// settle runs cmd and feeds its messages back until the chain ends.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for i := 0; cmd != nil && i < 10; i++ {
		msg := cmd()
		if msg == nil {
			return m
		}
		m, cmd = step(t, m, msg)
	}
	return m
}

func TestSidebarNavigation(t *testing.T) {
	m, d := setupModel(t)
	m = settle(t, m, m.load())

	view := m.View()
	for _, want := range []string{"Accueil", "Souscriptions", "Vault MultiSig", "Déconnexion", "Récapitulatif", "N/A"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view misses %q:\n%s", want, view)
		}
	}

	m, _ = step(t, m, key("down"))
	m, cmd := step(t, m, key("enter"))
	if d.Active() != nav.Subscription || m.cursor != 1 {
		t.Fatalf("expected subscription active, got %s cursor %d", d.Active(), m.cursor)
	}
	m = settle(t, m, cmd)
	if !strings.Contains(m.View(), "Inscrit: non") {
		t.Fatalf("subscription panel not rendered:\n%s", m.View())
	}

	m, _ = step(t, m, key("up"))
	m, _ = step(t, m, key("up"))
	if m.cursor != 0 {
		t.Fatalf("cursor must stop at the first entry, got %d", m.cursor)
	}
}

func TestRegisterAndSubscribeFromKeys(t *testing.T) {
	m, d := setupModel(t)
	if _, err := d.SelectPanel(nav.Subscription); err != nil {
		t.Fatalf("select: %v", err)
	}
	m.cursor = m.activeIndex()

	m, _ = step(t, m, key("n"))
	if m.form != formRegister || len(m.inputs) != 2 {
		t.Fatalf("register form not opened")
	}
	m, _ = step(t, m, key("alice"))
	m, _ = step(t, m, key("enter"))
	m, _ = step(t, m, key("a@b.com"))
	m, cmd := step(t, m, key("enter"))
	if m.form != formNone || cmd == nil {
		t.Fatalf("submitting the form must close it and start the write")
	}
	m = settle(t, m, cmd)
	if m.err != nil {
		t.Fatalf("register failed: %v", m.err)
	}
	if got := d.State().Profile().Username; got != "alice" {
		t.Fatalf("profile not refreshed, got %q", got)
	}
	if !strings.Contains(m.status, "confirmé") {
		t.Fatalf("unexpected status %q", m.status)
	}

	m, cmd = step(t, m, key("s"))
	m = settle(t, m, cmd)
	if !d.State().Subscribed() {
		t.Fatalf("subscription not dispatched, err %v", m.err)
	}
	if !strings.Contains(m.View(), "Souscrit: oui") {
		t.Fatalf("panel not refreshed:\n%s", m.View())
	}
}

func TestWriteErrorsAreShown(t *testing.T) {
	m, d := setupModel(t)

	m, cmd := step(t, m, key("s"))
	m = settle(t, m, cmd)
	if m.err == nil || !strings.Contains(m.View(), "Erreur") {
		t.Fatalf("writes from the wrong panel must surface an error")
	}

	if _, err := d.SelectPanel(nav.Subscription); err != nil {
		t.Fatalf("select: %v", err)
	}
	m, _ = step(t, m, key("m"))
	m, _ = step(t, m, key("nope"))
	m, _ = step(t, m, key("enter"))
	m, _ = step(t, m, key("enter"))
	m, cmd = step(t, m, key("enter"))
	m = settle(t, m, cmd)
	if m.err == nil {
		t.Fatalf("invalid multisig form must surface an error")
	}

	m, _ = step(t, m, key("m"))
	m, _ = step(t, m, key("esc"))
	if m.form != formNone {
		t.Fatalf("esc must close the form")
	}
}

func TestStalePanelMessagesAreIgnored(t *testing.T) {
	m, _ := setupModel(t)
	m, _ = step(t, m, panelMsg{panel: nav.Vault, body: "stale"})
	if m.body == "stale" {
		t.Fatalf("a panel that is not active must not render")
	}
}

func TestLogoutAndQuit(t *testing.T) {
	m, d := setupModel(t)
	logouts := 0
	d.SetLogout(func(context.Context) error {
		logouts++
		return nil
	})

	for i := 0; i < 4; i++ {
		m, _ = step(t, m, key("down"))
	}
	m, cmd := step(t, m, key("enter"))
	if logouts != 1 || cmd == nil {
		t.Fatalf("logout entry must run the hook and quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit")
	}
	if m.View() != "" {
		t.Fatalf("a quitting model renders nothing")
	}

	m2, _ := setupModel(t)
	_, cmd = step(t, m2, key("q"))
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("q must quit")
	}
}
