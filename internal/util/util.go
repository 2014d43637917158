// Package util provides logging, styling and small shared helpers.
package util

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/manifoldco/promptui"
)

var (
	IsDebug       bool
	minNameLength = 4

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Underline(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4")).
			Bold(true)

	optionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#45B7D1")).
			Italic(true)

	exampleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4757")).
			Bold(true)

	debugErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF4757")).
			Padding(1, 2)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA726")).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF69B4")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)
)

// SetDebugMode sets the debug mode
func SetDebugMode(debug bool) {
	IsDebug = debug
}

// PromptQuery asks the user for a search query and validates its length.
func PromptQuery(label string) (string, error) {
	styledLabel := promptStyle.Render("🎮 " + label)

	prompt := promptui.Prompt{
		Label: styledLabel,
	}

	query, err := prompt.Run()
	if err != nil {
		return "", err
	}
	query = strings.TrimSpace(query)
	if len(query) < minNameLength {
		return "", fmt.Errorf("anime name must have at least %d characters, you entered: %v", minNameLength, query)
	}

	fmt.Println(successStyle.Render("✓ Searching for: " + query))
	return query, nil
}

// ErrorHandler returns a stylized error message
func ErrorHandler(err error) string {
	if IsDebug {
		styledHeader := errorStyle.Render("🚨 DEBUG ERROR 🔍")
		styledError := debugErrorStyle.Render(fmt.Sprintf("%+v", err))
		return fmt.Sprintf("%s\n%s", styledHeader, styledError)
	}

	styledError := errorStyle.Render(fmt.Sprintf("❌ %v", err))
	styledHint := warningStyle.Render("💡 run the program with -d to see details")
	return fmt.Sprintf("%s\n%s", styledError, styledHint)
}

// SoftWarn prints a one-line, non-fatal hint to the user.
func SoftWarn(msg string) {
	fmt.Println(warningStyle.Render("⚠ " + msg))
}

// Success prints a styled success line.
func Success(msg string) {
	fmt.Println(successStyle.Render("✓ " + msg))
}

// Title prints a styled section header.
func Title(msg string) {
	fmt.Println(titleStyle.Render(msg))
}

// Helper prints the help message
func Helper() {
	title := titleStyle.Render("🎌 aniplay - Anime Discovery & Playback")

	usage := helpStyle.Render("📖 Usage:")
	usageExamples := []string{
		"  aniplay",
		"  aniplay " + optionStyle.Render("[options]"),
		"  aniplay " + optionStyle.Render("-q") + " " + exampleStyle.Render("\"anime name\""),
		"  aniplay anilist " + optionStyle.Render("[auth|menu]"),
	}

	options := helpStyle.Render("⚙️  Options:")
	optionsList := []string{
		"  " + optionStyle.Render("-q, --query") + "              🔍 Search directly for an anime",
		"  " + optionStyle.Render("-c, --continue_watching") + "  ▶️  Resume from watch history",
		"  " + optionStyle.Render("-d, --debug") + "              🐛 Enable debug mode",
		"  " + optionStyle.Render("-v, --version") + "            ℹ️  Show version information",
		"  " + optionStyle.Render("-h, --help") + "               📚 Show this help message",
	}

	fmt.Println(title)
	fmt.Println()
	fmt.Println(usage)
	for _, line := range usageExamples {
		fmt.Println(line)
	}
	fmt.Println()
	fmt.Println(options)
	for _, line := range optionsList {
		fmt.Println(line)
	}
	fmt.Println()
}
