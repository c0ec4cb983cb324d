package service

import (
	"edumentor_backend/internal/config"
	"edumentor_backend/internal/model"
	"edumentor_backend/internal/repository"
	"edumentor_backend/internal/util"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"
)

// Selector picks the next question for a session: least-signal subtopic,
// staircase target difficulty, then an ordered chain of relaxation rules
// evaluated until one yields an unused candidate.
type Selector struct {
	Bank     *repository.QuestionBankRepository
	Taxonomy *repository.TaxonomyRepository
	Cfg      *config.Config
}

func NewSelector(bank *repository.QuestionBankRepository, taxonomy *repository.TaxonomyRepository, cfg *config.Config) *Selector {
	return &Selector{Bank: bank, Taxonomy: taxonomy, Cfg: cfg}
}

func (s *Selector) SetConfig(cfg *config.Config) {
	s.Cfg = cfg
}

// relaxationRule is one rung of the fallback chain. The rules run in
// declaration order; the chain is data so the policy stays testable and
// swappable.
type relaxationRule struct {
	name string
	find func(s *Selector, state *SessionState, subtopic *model.Subtopic, exclude []uint, excludeSubtopics []string) (*model.QuestionBankEntry, error)
}

var fallbackChain = []relaxationRule{
	{
		name: "exact",
		find: func(s *Selector, state *SessionState, subtopic *model.Subtopic, exclude []uint, excludeSubtopics []string) (*model.QuestionBankEntry, error) {
			return s.Bank.FindCandidate(repository.BankFilter{
				SubtopicCode: subtopic.Code,
				GradeLevel:   state.GradeLevel,
				Difficulty:   state.Difficulty,
				ExcludeIDs:   exclude,
			})
		},
	},
	{
		name: "nearest_difficulty",
		find: func(s *Selector, state *SessionState, subtopic *model.Subtopic, exclude []uint, excludeSubtopics []string) (*model.QuestionBankEntry, error) {
			available, err := s.Bank.ListDifficulties(subtopic.Code, state.GradeLevel, exclude)
			if err != nil {
				return nil, err
			}
			if len(available) == 0 {
				return nil, gorm.ErrRecordNotFound
			}
			nearest := nearestDifficulty(available, state.Difficulty)
			return s.Bank.FindCandidate(repository.BankFilter{
				SubtopicCode: subtopic.Code,
				GradeLevel:   state.GradeLevel,
				Difficulty:   nearest,
				ExcludeIDs:   exclude,
			})
		},
	},
	{
		name: "topic_level",
		find: func(s *Selector, state *SessionState, subtopic *model.Subtopic, exclude []uint, excludeSubtopics []string) (*model.QuestionBankEntry, error) {
			return s.Bank.FindCandidate(repository.BankFilter{
				TopicCode:        subtopic.TopicCode,
				GradeLevel:       state.GradeLevel,
				ExcludeIDs:       exclude,
				ExcludeSubtopics: excludeSubtopics,
			})
		},
	},
	{
		name: "grade_step",
		find: func(s *Selector, state *SessionState, subtopic *model.Subtopic, exclude []uint, excludeSubtopics []string) (*model.QuestionBankEntry, error) {
			for _, grade := range []int{state.GradeLevel - 1, state.GradeLevel + 1} {
				if grade < 1 {
					continue
				}
				q, err := s.Bank.FindCandidate(repository.BankFilter{
					SubtopicCode: subtopic.Code,
					GradeLevel:   grade,
					ExcludeIDs:   exclude,
				})
				if err == nil {
					return q, nil
				}
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, err
				}
			}
			return nil, gorm.ErrRecordNotFound
		},
	},
	{
		name: "any_in_subject",
		find: func(s *Selector, state *SessionState, subtopic *model.Subtopic, exclude []uint, excludeSubtopics []string) (*model.QuestionBankEntry, error) {
			return s.Bank.FindCandidate(repository.BankFilter{
				SubjectCode:      state.SubjectCode,
				ExcludeIDs:       exclude,
				ExcludeSubtopics: excludeSubtopics,
			})
		},
	},
}

// SelectNext resolves the next question for the session. It returns
// util.ErrBankExhausted when no unused candidate exists anywhere in the
// subject; the caller treats that as legitimate early completion.
// util.ErrCapacityExceeded signals a caller bug: the caps must be checked
// before selection is invoked.
func (s *Selector) SelectNext(state *SessionState) (*model.QuestionBankEntry, error) {
	d := s.Cfg.Diagnostic
	if state.TotalAsked >= d.MaxTotalQuestions {
		return nil, fmt.Errorf("assessment %d at %d questions: %w", state.AssessmentID, state.TotalAsked, util.ErrCapacityExceeded)
	}

	subtopics, err := s.Taxonomy.ListSubtopicsBySubject(state.SubjectCode)
	if err != nil {
		return nil, err
	}
	if len(subtopics) == 0 {
		return nil, util.ErrBankExhausted
	}

	target := s.pickSubtopic(state, subtopics)
	if target == nil {
		// Every subtopic is at its cap.
		return nil, util.ErrBankExhausted
	}

	cappedSubtopics := s.cappedSubtopics(state, subtopics)

	for _, rule := range fallbackChain {
		q, err := rule.find(s, state, target, state.AskedIDs, cappedSubtopics)
		if err == nil {
			return q, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fallback rule %s: %w", rule.name, err)
		}
	}

	return nil, util.ErrBankExhausted
}

// pickSubtopic chooses the subtopic with the least signal so far: fewest
// questions asked, ties broken by the mastery estimate closest to the 0.5
// midpoint. Subtopics at the per-subtopic cap are skipped.
func (s *Selector) pickSubtopic(state *SessionState, subtopics []model.Subtopic) *model.Subtopic {
	maxPer := s.Cfg.Diagnostic.MaxPerSubtopic

	var best *model.Subtopic
	bestCount := 0
	bestDistance := 0.0

	for i := range subtopics {
		st := &subtopics[i]
		count := state.SubtopicCounts[st.Code]
		if count >= maxPer {
			continue
		}
		distance := math.Abs(state.MasteryOf(st.Code) - 0.5)

		if best == nil || count < bestCount || (count == bestCount && distance < bestDistance) {
			best = st
			bestCount = count
			bestDistance = distance
		}
	}

	return best
}

func (s *Selector) cappedSubtopics(state *SessionState, subtopics []model.Subtopic) []string {
	maxPer := s.Cfg.Diagnostic.MaxPerSubtopic
	var capped []string
	for _, st := range subtopics {
		if state.SubtopicCounts[st.Code] >= maxPer {
			capped = append(capped, st.Code)
		}
	}
	return capped
}

func nearestDifficulty(available []int, target int) int {
	nearest := available[0]
	for _, d := range available[1:] {
		if abs(d-target) < abs(nearest-target) {
			nearest = d
		}
	}
	return nearest
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
