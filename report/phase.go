package report

import "github.com/paiml/depyler-sub004/common"

// ReportHeader displays the tool version and the selected async mode before
// any work begins.
func ReportHeader(mode string) {
	if LogLevel() == LogLevelVerbose {
		InfoColorFG.Print("pyrs ")
		SuccessColorFG.Print("v" + common.PyrsVersion)
		InfoColorFG.Print(" -- mode: ")
		SuccessColorFG.Println(mode)
	}
}

// ReportBeginPhase reports the beginning of a phase such as "Loading" or
// "Transpiling".  Only one phase can be displayed at a time.
func ReportBeginPhase(phase string) {
	if LogLevel() == LogLevelVerbose {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayBeginPhase(phase)
	}
}

// ReportEndPhase ends the current phase, marking it as failed if any errors
// were reported while it was running.
func ReportEndPhase() {
	if LogLevel() == LogLevelVerbose {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayEndPhase(rep.errorCount == 0)
	}
}

// ReportFinished displays the concluding message of a run over fileCount
// files.
func ReportFinished(fileCount int) {
	if LogLevel() == LogLevelVerbose {
		errs, warns := Counts()
		displayFinished(errs, warns, fileCount)
	}
}
