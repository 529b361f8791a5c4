package sections

import (
	"slices"

	"leetee/internal/grading"
	"leetee/internal/models"
)

func registerDefaults(r *Registry) {
	for _, t := range []string{
		models.SectionVocab,
		models.SectionMedia,
		models.SectionVideo,
		models.SectionStory,
		models.SectionStrategy,
		models.SectionEssayModel,
	} {
		r.Register(t, Builder{Template: t, Grade: acknowledge})
	}

	r.Register(models.SectionSELCheckin, Builder{Template: "choice", Grade: anyOption})
	r.Register(models.SectionCharacterChoice, Builder{Template: "choice", Grade: anyOption})
	r.Register(models.SectionMCQ, Builder{Template: "mcq", Grade: multipleChoice})
	r.Register(models.SectionMultiSelect, Builder{Template: "multiSelect", Grade: multiSelect})
	r.Register(models.SectionDragMatch, Builder{Template: "dragMatch", Grade: dragMatch})
	r.Register(models.SectionWriting, Builder{Template: "writing", Grade: shortResponse, FreeText: true})
	r.Register(models.SectionReflection, Builder{Template: "reflection", Grade: shortResponse, FreeText: true})

	r.RegisterInteraction(models.InteractionEvidenceHighlight, Builder{Template: "evidence_highlight", Grade: evidence})
	r.RegisterInteraction(models.InteractionSequenceEvents, Builder{Template: "sequence_events", Grade: sequence})
	r.RegisterInteraction(models.InteractionClozeContext, Builder{Template: "cloze_context", Grade: cloze})
	r.RegisterInteraction(models.InteractionShortResponse, Builder{Template: "short_response", Grade: shortResponse, FreeText: true})
}

// acknowledge completes reading and viewing sections on any submission.
func acknowledge(*models.Section, *models.Interaction, Response) grading.Verdict {
	return grading.Correct
}

// anyOption accepts any offered option; there is no wrong feeling or path.
func anyOption(s *models.Section, _ *models.Interaction, resp Response) grading.Verdict {
	if slices.ContainsFunc(s.Options, func(o models.Option) bool { return o.ID == resp.Choice }) {
		return grading.Correct
	}
	return grading.Incorrect
}

func multipleChoice(s *models.Section, _ *models.Interaction, resp Response) grading.Verdict {
	return grading.MultipleChoice(resp.Choice, s.Correct)
}

func multiSelect(s *models.Section, _ *models.Interaction, resp Response) grading.Verdict {
	return grading.MultiSelect(resp.Choices, s.CorrectIDs)
}

func dragMatch(s *models.Section, _ *models.Interaction, resp Response) grading.Verdict {
	answers := make(map[string]string, len(s.Items))
	for _, it := range s.Items {
		answers[it.ID] = it.Target
	}
	return grading.Match(resp.Placements, answers)
}

func shortResponse(s *models.Section, in *models.Interaction, resp Response) grading.Verdict {
	minLength, keywords := criteria(s, in)
	return grading.ShortResponse(resp.Text, minLength, keywords)
}

func evidence(_ *models.Section, in *models.Interaction, resp Response) grading.Verdict {
	return grading.Evidence(resp.SelectedIndex(), in.Evidence)
}

func sequence(_ *models.Section, in *models.Interaction, resp Response) grading.Verdict {
	return grading.Sequence(resp.Order, in.Order)
}

func cloze(_ *models.Section, in *models.Interaction, resp Response) grading.Verdict {
	return grading.Cloze(resp.SelectedIndex(), in.Answer)
}
