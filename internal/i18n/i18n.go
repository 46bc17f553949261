// Package i18n turns errors and status lines into messages for the user.
// English and Turkish are supported; anything else falls back to English.
package i18n

import (
	"errors"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gwlsn/augmentor/internal/backend"
	"github.com/gwlsn/augmentor/internal/jobs"
	"github.com/gwlsn/augmentor/internal/media"
	"github.com/gwlsn/augmentor/internal/options"
	"github.com/gwlsn/augmentor/internal/timeline"
	"github.com/gwlsn/augmentor/internal/validation"
)

// Supported lists the languages with a catalog, default first.
var Supported = []language.Tag{language.English, language.Turkish}

var (
	matcher = language.NewMatcher(Supported)
	msgs    = buildCatalog()
)

// Match picks the best supported language for the given preferences. Each
// preference may be a locale name ("tr", "en-US") or a full Accept-Language
// header; earlier preferences win.
func Match(prefs ...string) language.Tag {
	var tags []language.Tag
	for _, pref := range prefs {
		if strings.TrimSpace(pref) == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(pref)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return Supported[0]
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Supported[0]
	}
	return Supported[idx]
}

// Printer formats messages in one language.
type Printer struct {
	tag  language.Tag
	kind media.Kind
	p    *message.Printer
}

// NewPrinter returns a Printer for tag, which should come from Match.
func NewPrinter(tag language.Tag) *Printer {
	return &Printer{
		tag: tag,
		p:   message.NewPrinter(tag, message.Catalog(msgs)),
	}
}

// ForKind returns a copy of p whose messages mention kind where it matters.
func (p *Printer) ForKind(kind media.Kind) *Printer {
	cp := *p
	cp.kind = kind
	return &cp
}

// Tag returns the printer's language.
func (p *Printer) Tag() language.Tag {
	return p.tag
}

// Sprintf formats one of the Msg keys.
func (p *Printer) Sprintf(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

// FamilyName is the display name of an option family.
func (p *Printer) FamilyName(family string) string {
	return cases.Title(p.tag).String(p.p.Sprintf(family))
}

// Describe renders err as a sentence for the user. Backend messages are
// passed through as reported.
func (p *Printer) Describe(err error) string {
	if err == nil {
		return ""
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		return p.describeValidation(verr)
	}

	var berr *backend.BackendError
	if errors.As(err, &berr) {
		if berr.Message != "" {
			return berr.Message
		}
		if berr.Op == "upload" {
			return p.Sprintf(MsgUploadFailed)
		}
		return p.Sprintf(MsgProcessFailed)
	}

	var terr *backend.TransportError
	if errors.As(err, &terr) {
		cause := terr.Err
		if cause == nil {
			cause = errors.New(terr.Op)
		}
		return p.Sprintf(MsgConnection, cause)
	}

	switch {
	case errors.Is(err, options.ErrPresetOnly):
		return p.Sprintf(MsgPresetOnly, p.FamilyName(strings.SplitN(err.Error(), ":", 2)[0]))
	case errors.Is(err, jobs.ErrNoUpload):
		return p.Sprintf(MsgNoUpload)
	case errors.Is(err, jobs.ErrAlreadyInFlight):
		return p.Sprintf(MsgInFlight)
	case errors.Is(err, jobs.ErrNotCompleted):
		return p.Sprintf(MsgNotCompleted)
	}
	return err.Error()
}

func (p *Printer) describeValidation(e *validation.Error) string {
	switch e.Reason {
	case validation.ReasonUnsupportedType:
		switch p.kind {
		case media.KindImage:
			return p.Sprintf(MsgUnsupportedImage)
		case media.KindVideo:
			return p.Sprintf(MsgUnsupportedVideo)
		}
		return p.Sprintf(MsgUnsupportedType)
	case validation.ReasonTooLarge:
		return p.Sprintf(MsgTooLarge, humanize.IBytes(uint64(e.Max)))
	case validation.ReasonNotANumber:
		return p.Sprintf(MsgNotANumber)
	case validation.ReasonOutOfRange:
		return p.Sprintf(MsgOutOfRange, p.FamilyName(e.Subject), e.Min, e.Max)
	case validation.ReasonInvalidTimeRange:
		switch e.Subject {
		case timeline.SubjectStart:
			return p.Sprintf(MsgStartAfterEnd)
		case timeline.SubjectEnd:
			return p.Sprintf(MsgEndPastDuration)
		}
		return p.Sprintf(MsgNegativeTime)
	case validation.ReasonUnknownFamily:
		return p.Sprintf(MsgUnknownFamily, e.Subject)
	case validation.ReasonNotAPreset:
		return p.Sprintf(MsgNotAPreset, e.Detail, p.FamilyName(e.Subject))
	}
	return e.Error()
}
