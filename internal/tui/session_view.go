// Package tui is the terminal interface for a practice session, built on
// tview. It renders the states the session manager publishes and forwards
// key presses back as manager actions; it holds no session state of its own.
package tui

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/jamflo/jamflo/internal/notes"
	"github.com/jamflo/jamflo/internal/routine"
	"github.com/jamflo/jamflo/internal/safego"
	"github.com/jamflo/jamflo/internal/session"
)

// Page names for tview.Pages
const (
	pageSession   = "session"
	pageOutline   = "outline"
	pageNoteInput = "note_input"
)

// SessionView implements the session screen using tview.
type SessionView struct {
	logger  *log.Logger
	app     *tview.Application
	manager *session.SessionManager

	// Notes support is optional; nil when running offline.
	notesClient *notes.Client
	userID      string
	routineID   string

	rtn   routine.Routine
	pages *tview.Pages

	sessionFlex    *tview.Flex
	timerPanel     *tview.TextView
	exercisePanel  *tview.TextView
	progressPanel  *tview.TextView
	metronomePanel *tview.TextView
	notesPanel     *tview.TextView

	outlineList *tview.List
	noteInput   *tview.InputField

	unsubscribe func()
	onExit      func()
}

// NewSessionView creates the view. notesClient may be nil. onExit runs once
// when the user quits the session screen.
func NewSessionView(logger *log.Logger, app *tview.Application, manager *session.SessionManager, rtn routine.Routine, notesClient *notes.Client, userID string, onExit func()) *SessionView {
	if logger == nil {
		panic("SessionView: logger cannot be nil")
	}
	if manager == nil {
		panic("SessionView: manager cannot be nil")
	}
	return &SessionView{
		logger:      logger,
		app:         app,
		manager:     manager,
		rtn:         rtn,
		notesClient: notesClient,
		userID:      userID,
		routineID:   rtn.ID,
		onExit:      onExit,
	}
}

// Initialize sets up the tview widgets.
func (ui *SessionView) Initialize() {
	ui.timerPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	ui.timerPanel.SetBorder(true).SetTitle(" Timer ")

	ui.exercisePanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	ui.exercisePanel.SetBorder(true).SetTitle(" Exercise ")

	ui.progressPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	ui.progressPanel.SetBorder(true).SetTitle(" Progress ")

	ui.metronomePanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	ui.metronomePanel.SetBorder(true).SetTitle(" Metronome ")

	ui.notesPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	ui.notesPanel.SetBorder(true).SetTitle(" Notes ")
	ui.notesPanel.SetText("\n  [gray]No notes yet. Press M to add one.[white]")

	leftColumn := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.timerPanel, 7, 0, true).
		AddItem(ui.exercisePanel, 0, 2, false).
		AddItem(ui.progressPanel, 6, 0, false)

	rightColumn := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.metronomePanel, 6, 0, false).
		AddItem(ui.notesPanel, 0, 1, false)

	ui.sessionFlex = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(leftColumn, 0, 2, true).
		AddItem(rightColumn, 0, 1, false)

	ui.initOutline()
	ui.initNoteInput()

	ui.pages = tview.NewPages()
	ui.pages.AddPage(pageSession, ui.sessionFlex, true, true)
	ui.pages.AddPage(pageOutline, ui.outlineList, true, false)
	ui.pages.AddPage(pageNoteInput, centered(ui.noteInput, 60, 3), true, false)

	// The manager publishes on its own goroutines; the listener updates
	// widgets and redraws, matching how state flows everywhere else.
	ui.unsubscribe = ui.manager.StateEvent().Subscribe(func(state session.ViewState) {
		ui.applyState(state)
		ui.app.Draw()
	})

	ui.refreshNotes()
}

// initOutline builds the full-routine jump list.
func (ui *SessionView) initOutline() {
	ui.outlineList = tview.NewList().
		ShowSecondaryText(true).
		SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
			flat := 0
			for bi, block := range ui.rtn.FocusBlocks {
				for ei := range block.Exercises {
					if flat == index {
						ui.logger.Printf("UI: jump to block=%d exercise=%d", bi, ei)
						ui.manager.JumpTo(bi, ei)
						ui.pages.SwitchToPage(pageSession)
						return
					}
					flat++
				}
			}
		})
	ui.outlineList.SetBorder(true).SetTitle(" Routine (Enter to jump, Esc to close) ")

	for _, block := range ui.rtn.FocusBlocks {
		for _, ex := range block.Exercises {
			ui.outlineList.AddItem(
				ex.Name,
				fmt.Sprintf("%s  |  %d min  |  %s", block.Name, ex.DurationMins, ex.Category),
				0, nil)
		}
	}
}

func (ui *SessionView) initNoteInput() {
	ui.noteInput = tview.NewInputField().SetLabel("Note: ")
	ui.noteInput.SetBorder(true).SetTitle(" Add Note ")
	ui.noteInput.SetDoneFunc(func(key tcell.Key) {
		text := ui.noteInput.GetText()
		ui.noteInput.SetText("")
		ui.pages.SwitchToPage(pageSession)
		if key != tcell.KeyEnter || text == "" {
			return
		}
		ui.addNote(text)
	})
}

func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 0, true).
			AddItem(nil, 0, 1, false), width, 0, true).
		AddItem(nil, 0, 1, false)
}

// SetupKeyboardHandlers sets up the key bindings for the session screen.
func (ui *SessionView) SetupKeyboardHandlers() {
	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		front, _ := ui.pages.GetFrontPage()
		if front == pageNoteInput {
			// The input field handles its own keys; Esc backs out.
			if event.Key() == tcell.KeyEscape {
				ui.noteInput.SetText("")
				ui.pages.SwitchToPage(pageSession)
				return nil
			}
			return event
		}
		if front == pageOutline {
			if event.Key() == tcell.KeyEscape {
				ui.pages.SwitchToPage(pageSession)
				return nil
			}
			return event
		}

		if event.Key() == tcell.KeyEscape {
			ui.quit()
			return nil
		}

		if event.Key() == tcell.KeyRune {
			switch event.Rune() {
			case ' ':
				ui.manager.ToggleRunning()
				return nil
			case 'n':
				ui.manager.SkipExercise()
				return nil
			case 'b':
				ui.manager.PrevExercise()
				return nil
			case 'j':
				ui.pages.SwitchToPage(pageOutline)
				return nil
			case 'o':
				ui.openCurrentResource()
				return nil
			case 'm':
				ui.pages.SwitchToPage(pageNoteInput)
				ui.app.SetFocus(ui.noteInput)
				return nil
			case '+', '=':
				state := ui.manager.State()
				ui.manager.SetMetronome(state.Metronome.BPM+5, 0)
				return nil
			case '-':
				state := ui.manager.State()
				ui.manager.SetMetronome(state.Metronome.BPM-5, 0)
				return nil
			case 'q':
				ui.quit()
				return nil
			}
		}
		return event
	})
}

func (ui *SessionView) quit() {
	ui.logger.Println("UI: quitting session screen")
	if ui.unsubscribe != nil {
		ui.unsubscribe()
		ui.unsubscribe = nil
	}
	if ui.onExit != nil {
		ui.onExit()
	}
	ui.app.Stop()
}

// openCurrentResource opens the first attached resource of the current
// exercise in the system handler for its URL.
func (ui *SessionView) openCurrentResource() {
	state := ui.manager.State()
	if state.Exercise == nil || len(state.Exercise.Resources) == 0 {
		return
	}
	res := state.Exercise.Resources[0]
	ui.logger.Printf("UI: opening resource %s (%s)", res.Name, res.URL)
	OpenURL(ui.logger, res.URL)
}

// Run starts the UI and blocks until it exits.
func (ui *SessionView) Run() error {
	ui.applyState(ui.manager.State())
	ui.app.SetRoot(ui.pages, true)
	ui.app.SetFocus(ui.timerPanel)
	return ui.app.Run()
}

// Stop stops the UI framework.
func (ui *SessionView) Stop() {
	ui.app.Stop()
}

// applyState renders one published state into the panels.
func (ui *SessionView) applyState(state session.ViewState) {
	ui.updateTimerDisplay(state)
	ui.updateExerciseDisplay(state)
	ui.updateProgressDisplay(state)
	ui.updateMetronomeDisplay(state)
}

func (ui *SessionView) updateTimerDisplay(state session.ViewState) {
	var status string
	switch {
	case state.Status == session.StatusCompleted:
		status = "[green]ROUTINE COMPLETE[white]"
	case state.IsRunning:
		status = "[green]RUNNING[white]"
	default:
		status = "[yellow]PAUSED[white]"
	}

	text := fmt.Sprintf("\n[yellow]%s[white]\n%s\n%s\n",
		state.TimerText, status, progressBar(state.ExerciseProgress, 28))
	ui.timerPanel.SetText(text)
}

func (ui *SessionView) updateExerciseDisplay(state session.ViewState) {
	if state.Exercise == nil {
		ui.exercisePanel.SetText("\n  [gray]This routine has no exercises.[white]\n\n  Press Q to leave.")
		return
	}

	ex := state.Exercise
	text := "\n"
	text += fmt.Sprintf("  [cyan]%s[white]\n", state.BlockName)
	if state.BlockDesc != "" {
		text += fmt.Sprintf("  [gray]%s[white]\n", state.BlockDesc)
	}
	text += "\n"
	text += fmt.Sprintf("  [yellow]%s[white]\n\n", ex.Name)
	text += fmt.Sprintf("  [gray]Category:[white] %s\n", ex.Category)
	text += fmt.Sprintf("  [gray]Duration:[white] %d min\n", ex.DurationMins)
	if ex.TempoBPM > 0 {
		text += fmt.Sprintf("  [gray]Tempo:[white]    %d bpm\n", ex.TempoBPM)
	}
	if ex.Notes != "" {
		text += fmt.Sprintf("\n  %s\n", ex.Notes)
	}
	if len(ex.Resources) > 0 {
		text += "\n  [gray]Resources:[white]\n"
		for i, res := range ex.Resources {
			marker := "  "
			if i == 0 {
				marker = "[yellow]O[white] "
			}
			text += fmt.Sprintf("    %s%s [gray](%s)[white]\n", marker, res.Name, res.Type)
		}
	}
	text += "\n  [gray]Space[white] Play/Pause  [gray]|[white]  [yellow]N[white] Next  [gray]|[white]  [yellow]B[white] Back\n"
	text += "  [yellow]J[white] Jump  [gray]|[white]  [yellow]M[white] Note  [gray]|[white]  [yellow]Q[white] Quit\n"
	ui.exercisePanel.SetText(text)
}

func (ui *SessionView) updateProgressDisplay(state session.ViewState) {
	p := state.Progress
	text := "\n"
	text += fmt.Sprintf("  [gray]Routine:[white]  %s\n", state.RoutineName)
	text += fmt.Sprintf("  [gray]Exercise:[white] %d of %d\n", p.CompletedExercises+1, p.TotalExercises)
	text += fmt.Sprintf("  %s [yellow]%d%%[white]\n", progressBar(float64(p.Percent)/100, 20), p.Percent)
	ui.progressPanel.SetText(text)
}

func (ui *SessionView) updateMetronomeDisplay(state session.ViewState) {
	text := "\n"
	text += fmt.Sprintf("  [yellow]%d[white] bpm\n", state.Metronome.BPM)
	text += fmt.Sprintf("  [gray]%d beats/bar[white]\n\n", state.Metronome.BeatsPerBar)
	text += "  [gray]+/- adjust[white]\n"
	ui.metronomePanel.SetText(text)
}

func progressBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return "[green]" + bar + "[white]"
}

// refreshNotes loads the routine's notes in the background.
func (ui *SessionView) refreshNotes() {
	if ui.notesClient == nil || ui.userID == "" {
		return
	}
	safego.Go(ui.logger, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		list, err := ui.notesClient.List(ctx, ui.userID, ui.routineID)
		if err != nil {
			ui.logger.Printf("UI: loading notes failed: %v", err)
			return
		}
		ui.renderNotes(list)
		ui.app.Draw()
	})
}

func (ui *SessionView) addNote(text string) {
	if ui.notesClient == nil || ui.userID == "" {
		ui.logger.Println("UI: notes unavailable offline")
		return
	}
	safego.Go(ui.logger, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := ui.notesClient.Add(ctx, ui.userID, ui.routineID, text); err != nil {
			ui.logger.Printf("UI: adding note failed: %v", err)
			return
		}
		list, err := ui.notesClient.List(ctx, ui.userID, ui.routineID)
		if err != nil {
			ui.logger.Printf("UI: reloading notes failed: %v", err)
			return
		}
		ui.renderNotes(list)
		ui.app.Draw()
	})
}

func (ui *SessionView) renderNotes(list []notes.Note) {
	if len(list) == 0 {
		ui.notesPanel.SetText("\n  [gray]No notes yet. Press M to add one.[white]")
		return
	}
	text := "\n"
	for _, n := range list {
		when := time.UnixMilli(n.UpdatedAtMs).Format("Jan 2 15:04")
		text += fmt.Sprintf("  [gray]%s[white]\n  %s\n\n", when, n.Text)
	}
	ui.notesPanel.SetText(text)
}
