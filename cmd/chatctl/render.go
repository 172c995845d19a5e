package main

import (
	"fmt"
	"io"
	"strings"

	"chatdesk/events"
	"chatdesk/models"
)

func printSessions(w io.Writer, snap events.Snapshot) {
	if len(snap.Sessions) == 0 {
		fmt.Fprintln(w, "(no sessions)")
		return
	}
	for i, sess := range snap.Sessions {
		marker := " "
		if sess.ID == snap.CurrentSessionID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %2d. %-30s [%s] %s\n", marker, i+1, sess.Title, modeLabel(sess.Mode), sess.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
}

func printModels(w io.Writer, snap events.Snapshot) {
	for i, m := range snap.Models {
		marker := " "
		if m.ID == snap.SelectedModel {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %2d. %s (%s)\n", marker, i+1, m.ID, m.Provider)
	}
}

func printMessage(w io.Writer, m models.Message) {
	label := "you"
	if m.Role == models.RoleAssistant {
		label = "assistant"
	}
	if kind := m.Kind(); kind != "" {
		label += " [" + kind + "]"
	}
	if m.Status == models.StatusFailed {
		label += " (failed)"
	}
	fmt.Fprintf(w, "%s> %s\n", label, strings.TrimRight(m.Content, "\n"))
}
