package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dmsd/dmsd/internal/dashboard"
	"github.com/dmsd/dmsd/internal/ethaddr"
	"github.com/dmsd/dmsd/internal/nav"
)

var (
	cAccent = lipgloss.Color("#7D56F4")
	cMuted  = lipgloss.Color("#8A8A8A")
	cWarn   = lipgloss.Color("#FF5F87")
	cOK     = lipgloss.Color("#04B575")

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cMuted).
			Padding(0, 1).
			Width(22)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cAccent).
			Padding(0, 1).
			Width(64)
	entryStyle  = lipgloss.NewStyle().Padding(0, 1)
	activeStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(cAccent)
	cursorStyle = lipgloss.NewStyle().Padding(0, 1).Reverse(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(cMuted)
	promptStyle = lipgloss.NewStyle().Foreground(cAccent)
	statusStyle = lipgloss.NewStyle().Foreground(cOK)
	errorStyle  = lipgloss.NewStyle().Foreground(cWarn).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(cMuted)
)

const help = "↑/↓ naviguer · entrée ouvrir · n inscription · m multisig · s souscrire · v valider · t transférer · a approuver · r rafraîchir · q quitter"

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var side strings.Builder
	for i, e := range m.dash.Sidebar() {
		style := entryStyle
		if e.Active {
			style = activeStyle
		}
		if i == m.cursor {
			style = cursorStyle.Bold(e.Active)
		}
		side.WriteString(style.Render(e.Label) + "\n")
	}

	body := m.body
	if m.form != formNone {
		body = m.formView()
	}
	if body == "" {
		body = helpStyle.Render("Chargement…")
	}

	screen := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebarStyle.Render(strings.TrimRight(side.String(), "\n")),
		panelStyle.Render(body),
	)

	footer := helpStyle.Render(help)
	switch {
	case m.err != nil:
		footer = errorStyle.Render("Erreur: "+m.err.Error()) + "\n" + footer
	case m.status != "":
		footer = statusStyle.Render(m.status) + "\n" + footer
	}
	return screen + "\n" + footer + "\n"
}

func (m Model) formView() string {
	title := "Inscription"
	if m.form == formMultisig {
		title = "Créer le vault multisig"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(title) + "\n")
	for _, in := range m.inputs {
		b.WriteString(in.View() + "\n")
	}
	b.WriteString(helpStyle.Render("tab champ suivant · entrée valider · échap annuler"))
	return b.String()
}

// renderPanel reads panel p and renders it as text.
func renderPanel(ctx context.Context, d *dashboard.Dashboard, p nav.Panel) (string, error) {
	switch p {
	case nav.Home:
		s, err := d.Summary(ctx)
		if err != nil {
			return "", err
		}
		return titleStyle.Render(s.Title) + "\n" + lines(
			"Adresse", s.Address,
			"Utilisateur", s.Username,
			"Email", s.Email,
			"Service", s.Service,
			"Récupération 1", s.RecoveryWallets[0],
			"Récupération 2", s.RecoveryWallets[1],
			"Wallet protégé", s.WalletToProtect,
		), nil

	case nav.Subscription:
		v, err := d.Subscription()
		if err != nil {
			return "", err
		}
		return titleStyle.Render(v.Title) + "\n" + lines(
			"Inscrit", yesNo(v.Registered),
			"Souscrit", yesNo(v.Subscribed),
		), nil

	case nav.Vault:
		v, err := d.VaultStatus(ctx)
		if err != nil {
			return "", err
		}
		out := v.Message
		if !v.Subscribed {
			return out, nil
		}
		ms, err := d.Multisig(ctx)
		if err != nil {
			return "", err
		}
		owners := ethaddr.NotAvailable
		if len(ms.Owners) > 0 {
			owners = strings.Join(ms.Owners, "\n  ")
		}
		return titleStyle.Render(ms.Title) + "\n" + out + "\n\n" + lines(
			"Multisig", ms.Address,
			"Seuil", ms.Threshold,
			"", ms.OwnersFor,
			"Propriétaires", "\n  "+owners,
			"Solde (wei)", ms.Balance,
		), nil

	case nav.Approve:
		v, err := d.ApprovalStatus(ctx)
		if err != nil {
			return "", err
		}
		body := titleStyle.Render(v.Title) + "\n" + lines(
			"Destinataire", v.Receiver,
			"Approuvé", yesNo(v.Approved),
		)
		if v.Message != "" {
			body += "\n" + v.Message
		}
		return body, nil
	}
	return "", fmt.Errorf("unknown panel %s", p)
}

func yesNo(b bool) string {
	if b {
		return "oui"
	}
	return "non"
}
