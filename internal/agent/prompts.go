package agent

import (
	"fmt"
	"strings"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

func correctionPrompt(code, title, source string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fiche métier %s : %s\n\n", code, title)
	b.WriteString("Réécris la description suivante en français correct, claire et neutre, ")
	b.WriteString("sans ajouter d'information. Réponds uniquement avec le texte corrigé.\n\n")
	b.WriteString(source)
	return b.String()
}

func variantsPrompt(code, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Intitulé du métier %s : %s\n\n", code, title)
	b.WriteString("Donne les formes masculine, féminine et épicène de cet intitulé. ")
	b.WriteString(`Réponds uniquement en JSON : {"masculin": "...", "feminin": "...", "epicene": "..."}`)
	return b.String()
}

func outlookPrompt(rec *secondary.OccupationRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Métier %s : %s\n", rec.ExternalCode, rec.Title)
	if rec.Description != "" {
		fmt.Fprintf(&b, "Description : %s\n", rec.Description)
	}
	b.WriteString("\nRésume en trois phrases les perspectives d'emploi de ce métier en France ")
	b.WriteString("(tension du recrutement, évolution attendue, compétences recherchées).")
	return b.String()
}
