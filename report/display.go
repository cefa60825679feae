package report

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = pterm.FgLightCyan
	InfoStyleBG    = pterm.NewStyle(pterm.BgLightCyan, pterm.FgBlack)
)

// displayICE displays an internal compiler error message.
func displayICE(message string) {
	fmt.Print("\n")
	ErrorStyleBG.Print("Internal Error")
	ErrorColorFG.Println(" " + message)
	InfoColorFG.Println("This error was not supposed to happen: please open an issue with the HIR that caused it.")
	fmt.Println()
}

// displayFatal displays a fatal error message.
func displayFatal(message string) {
	fmt.Print("\n")
	ErrorStyleBG.Print("Fatal Error")
	ErrorColorFG.Println(" " + message)
	fmt.Println()
}

// displayCompileMessage displays a lowering error or warning.  The label is
// the string to prefix the message with: eg. if we want to display an error,
// the label is "error".
func displayCompileMessage(label, srcPath, reprPath string, span *TextSpan, message string) {
	displayBanner(label, reprPath)

	if span == nil {
		fmt.Println(message)
		fmt.Println()
		return
	}

	fmt.Printf("%s:%d:%d: %s\n\n", reprPath, span.StartLine+1, span.StartCol+1, message)

	// The Python source is optional: HIR documents may be transpiled without
	// the file they were built from.
	if srcPath != "" {
		displaySourceText(srcPath, span)
	}
}

// displayBanner displays the banner on top of all file messages.
func displayBanner(label, reprPath string) {
	fmt.Print("\n-- ")

	kindStr := strings.ToUpper(label[:1]) + label[1:]
	if label == "error" {
		ErrorStyleBG.Print(kindStr)
	} else {
		WarnStyleBG.Print(kindStr)
	}

	fmt.Print(" ")

	fileName := filepath.Base(reprPath)
	bannerLen := pterm.GetTerminalWidth() / 2
	if bannerLen > 50 {
		bannerLen = 50
	}

	dashCount := bannerLen - len(fileName) - len(kindStr) - 1
	if dashCount < 2 {
		dashCount = 2
	}

	fmt.Print(strings.Repeat("-", dashCount) + " ")
	InfoColorFG.Println(fileName)
}

// displayStdError displays a standard Go error.
func displayStdError(reprPath string, err error) {
	displayBanner("error", reprPath)
	ErrorColorFG.Println(err.Error())
	fmt.Println()
}

// DisplayInfoMessage prints an informational message to the user.
func DisplayInfoMessage(tag, msg string) {
	InfoStyleBG.Print(tag)
	InfoColorFG.Println(" " + msg)
}

// -----------------------------------------------------------------------------

// displaySourceText displays a segment of source text defined by a text span.
// Missing or unreadable source files are silently skipped.
func displaySourceText(srcPath string, span *TextSpan) {
	file, err := os.Open(srcPath)
	if err != nil {
		return
	}
	defer file.Close()

	// Collect all the source lines containing the given source text.
	var lines []string
	sc := bufio.NewScanner(file)
	for ln := 0; sc.Scan(); ln++ {
		if span.StartLine <= ln && ln <= span.EndLine {
			lines = append(lines, strings.ReplaceAll(sc.Text(), "\t", "    "))
		}
	}

	if sc.Err() != nil || len(lines) == 0 {
		return
	}

	// Calculate the minimum line indentation.
	minIndent := math.MaxInt
	for _, line := range lines {
		lineIndent := len(line) - len(strings.TrimLeft(line, " "))
		if lineIndent < minIndent {
			minIndent = lineIndent
		}
	}

	maxLineNumLen := len(strconv.Itoa(span.EndLine + 1))
	lineNumFmtStr := "%-" + strconv.Itoa(maxLineNumLen) + "v | "

	for i, line := range lines {
		InfoColorFG.Print(fmt.Sprintf(lineNumFmtStr, i+span.StartLine+1))
		fmt.Println(line[minIndent:])

		fmt.Print(strings.Repeat(" ", maxLineNumLen), " | ")

		// Underlining starts at the start column on the first line and at the
		// trimmed indentation on all the others.
		carretPrefixCount := 0
		if i == 0 {
			carretPrefixCount = span.StartCol - minIndent
		}

		// Only the last line stops underlining before the end of the line.
		carretSuffixCount := 0
		if i == len(lines)-1 {
			carretSuffixCount = len(line) - span.EndCol - 1
		}

		carretCount := len(line) - carretSuffixCount - carretPrefixCount - minIndent
		if carretPrefixCount < 0 || carretCount < 1 {
			fmt.Println()
			continue
		}

		fmt.Print(strings.Repeat(" ", carretPrefixCount))
		ErrorColorFG.Println(strings.Repeat("^", carretCount))
	}

	fmt.Println()
}

// -----------------------------------------------------------------------------

// The current phase spinner and its state.
var (
	phaseSpinner   *pterm.SpinnerPrinter
	currentPhase   string
	phaseStartTime time.Time
)

const maxPhaseLength = len("Transpiling")

// displayBeginPhase displays the beginning of a phase.
func displayBeginPhase(phase string) {
	currentPhase = phase
	phaseText := phase + "..." + strings.Repeat(" ", maxPhaseLength-len(phase)+2)
	spinner := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(InfoColorFG))

	spinner.SuccessPrinter = &pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix: pterm.Prefix{
			Style: SuccessStyleBG,
			Text:  "Done",
		},
	}

	spinner.FailPrinter = &pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix: pterm.Prefix{
			Style: ErrorStyleBG,
			Text:  "Fail",
		},
	}

	phaseSpinner, _ = spinner.Start(phaseText)
	phaseStartTime = time.Now()
}

// displayEndPhase displays the end of a phase.
func displayEndPhase(success bool) {
	if phaseSpinner == nil {
		return
	}

	padding := strings.Repeat(" ", maxPhaseLength-len(currentPhase)+2)
	if success {
		phaseSpinner.Success(
			currentPhase+padding,
			fmt.Sprintf("(%.3fs)", time.Since(phaseStartTime).Seconds()),
		)
	} else {
		phaseSpinner.Fail(currentPhase + padding)
	}

	phaseSpinner = nil
}

// displayFinished displays the concluding message of a run.
func displayFinished(errorCount, warningCount, fileCount int) {
	fmt.Print("\n")

	if errorCount == 0 {
		SuccessColorFG.Print("All done! ")
	} else {
		ErrorColorFG.Print("Oh no! ")
	}

	fmt.Print("(")
	displayCount(errorCount, "error", ErrorColorFG)
	fmt.Print(", ")
	displayCount(warningCount, "warning", WarnColorFG)
	fmt.Print(", ")
	displayCount(fileCount, "file", InfoColorFG)
	fmt.Println(")")
}

// displayCount prints a pluralized count using color for non-zero values.
func displayCount(n int, noun string, color pterm.Color) {
	if n == 0 {
		SuccessColorFG.Print(0)
	} else {
		color.Print(n)
	}

	if n == 1 {
		fmt.Print(" " + noun)
	} else {
		fmt.Print(" " + noun + "s")
	}
}
