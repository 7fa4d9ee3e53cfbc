package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"starpets/internal/game"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).MarginTop(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 2)
)

var rarityColors = map[game.Rarity]string{
	game.RarityCommon:    "250",
	game.RarityRare:      "39",
	game.RarityEpic:      "171",
	game.RarityLegendary: "214",
	game.RarityMythic:    "203",
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func printTitle(title string) {
	fmt.Println(titleStyle.Render(title))
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func rarityLabel(r game.Rarity) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(rarityColors[r])).Bold(true).Render(string(r))
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(game.AmountPlaces)
}

func signedAmount(d decimal.Decimal) string {
	text := amount(d)
	if d.IsPositive() {
		text = "+" + text
	}
	switch {
	case d.IsPositive():
		return success.Sprint(text)
	case d.IsNegative():
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func energyBar(energy int) string {
	filled := energy / 10
	bar := strings.Repeat("#", filled) + strings.Repeat(".", game.MaxEnergy/10-filled)
	c := success
	switch {
	case energy < game.EnergyCostPerHour:
		c = danger
	case energy < game.MaxEnergy/2:
		c = warn
	}
	return c.Sprintf("[%s] %d/%d", bar, energy, game.MaxEnergy)
}

func renderWallet(w game.Wallet) {
	body := fmt.Sprintf("Gems:    %s\nShells:  %s\nTickets: %s\nEnergy:  %s",
		amount(w.GemBalance), amount(w.ShellBalance), w.MineTickets.String(), energyBar(w.Energy))
	fmt.Println(panelStyle.Render(body))
}

func renderTransactions(rows []game.Transaction) {
	if len(rows) == 0 {
		printInfo("No transactions yet.")
		return
	}
	out := make([][]string, 0, len(rows))
	for _, t := range rows {
		delta := t.Amount
		if t.Type == game.TxSpend {
			delta = delta.Neg()
		}
		out = append(out, []string{
			t.CreatedAt.Local().Format("01-02 15:04"),
			string(t.Currency),
			signedAmount(delta),
			t.Source,
			truncate(t.Description, 32),
		})
	}
	fmt.Println(renderTable([]string{"WHEN", "CURRENCY", "AMOUNT", "SOURCE", "NOTE"}, out))
}

func renderCreatures(creatures []game.CreatureView) {
	if len(creatures) == 0 {
		printInfo("No creatures yet. Run `spctl starter` to adopt one.")
		return
	}
	rows := make([][]string, 0, len(creatures))
	for _, c := range creatures {
		rows = append(rows, []string{
			c.ID,
			truncate(c.Name, 20),
			rarityLabel(c.Rarity),
			strconv.Itoa(c.Level),
			fmt.Sprintf("%.0f%%", c.Progress.Percent),
			amount(c.GemPerHour),
			amount(c.ShellPerHour),
		})
	}
	fmt.Println(renderTable([]string{"ID", "NAME", "RARITY", "LV", "EXP", "GEM/H", "SHELL/H"}, rows))
}

func renderRewards(title string, r game.Rewards) {
	accent.Println(title)
	fmt.Printf("Gems:    %s\n", signedAmount(r.Gem))
	fmt.Printf("Shells:  %s\n", signedAmount(r.Shell))
	if r.Hours > 0 {
		fmt.Printf("Hours:   %.2f\n", r.Hours)
	}
	if r.EnergyConsumed > 0 {
		fmt.Printf("Energy:  -%d\n", r.EnergyConsumed)
	}
	if r.ExpGained > 0 {
		fmt.Printf("Exp:     +%d\n", r.ExpGained)
	}
	if r.LevelUp != nil {
		success.Printf("Level up! %s: %d -> %d\n", shortID(r.LevelUp.CreatureID), r.LevelUp.OldLevel, r.LevelUp.NewLevel)
	}
}

func renderProductionStatus(st game.ProductionStatus) {
	if !st.Active || st.Session == nil {
		printInfo("No production running.")
		fmt.Printf("Energy: %s\n", energyBar(st.Energy))
		return
	}
	accent.Println("Production running")
	fmt.Printf("Since:   %s (%s ago)\n", st.Session.StartTime.Local().Format(time.Kitchen), time.Since(st.Session.StartTime).Round(time.Minute))
	fmt.Printf("Energy:  %s\n", energyBar(st.Energy))
	if st.Current != nil {
		fmt.Printf("Pending: %s gems, %s shells\n", amount(st.Current.Gem), amount(st.Current.Shell))
	}
	if st.EstimatedStopTime != nil {
		warn.Printf("Energy runs out around %s\n", st.EstimatedStopTime.Local().Format(time.Kitchen))
	}
}

func renderFusionRules() {
	rows := [][]string{}
	for _, r := range game.FusionRules() {
		rows = append(rows, []string{
			rarityLabel(r.Target),
			fmt.Sprintf("%d x %s", r.MaterialCount, r.Material),
			amount(r.ShellCost),
			fmt.Sprintf("%.0f%%", r.SuccessRate*100),
		})
	}
	printTitle("Fusion")
	fmt.Println(renderTable([]string{"TARGET", "MATERIALS", "SHELLS", "SUCCESS"}, rows))
}

func renderMineSpots() {
	rows := [][]string{}
	for _, s := range game.MineSpots() {
		rows = append(rows, []string{
			strconv.Itoa(s.Level),
			s.Name,
			strconv.Itoa(s.TicketCost),
			strconv.Itoa(s.EnergyCost),
			s.Duration.String(),
			fmt.Sprintf("~%d", int64(float64(s.BaseGem)*s.Difficulty)),
			fmt.Sprintf("~%d", int64(float64(s.BaseShell)*s.Difficulty)),
		})
	}
	printTitle("Mine spots")
	fmt.Println(renderTable([]string{"LV", "SPOT", "TICKETS", "ENERGY", "TIME", "GEMS", "SHELLS"}, rows))
}

func renderExpTable() {
	rows := [][]string{}
	for _, r := range game.ExpTable() {
		rows = append(rows, []string{
			strconv.Itoa(r.Level),
			strconv.FormatInt(r.RequiredExp, 10),
			strconv.FormatInt(r.ExpToNext, 10),
			fmt.Sprintf("x%.2f", r.ProductionBonus),
		})
	}
	printTitle("Levels")
	fmt.Println(renderTable([]string{"LV", "TOTAL EXP", "TO NEXT", "BONUS"}, rows))
}

func renderAchievements(views []game.AchievementView) {
	rows := make([][]string, 0, len(views))
	for _, a := range views {
		state := neutral.Sprint("locked")
		switch {
		case a.Claimed:
			state = accent.Sprint("claimed")
		case a.Unlocked:
			state = success.Sprint("ready")
		}
		rows = append(rows, []string{
			a.ID,
			a.Name,
			fmt.Sprintf("%d/%d", min(a.Progress, a.Target), a.Target),
			fmt.Sprintf("%s gem %s shell", a.RewardGem.String(), a.RewardShell.String()),
			state,
		})
	}
	fmt.Println(renderTable([]string{"ID", "NAME", "PROGRESS", "REWARD", "STATE"}, rows))
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
