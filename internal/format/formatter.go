// Package format renders lookup results as reply text.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/dmbot/internal/lookup"
)

// TimeLayout is the day/month/year, 12-hour layout used for every timestamp.
const TimeLayout = "02/01/2006, 03:04:05 PM"

// Formatter renders lookup results. The zero value renders times in UTC.
type Formatter struct {
	Location *time.Location
}

// New returns a Formatter rendering times in loc (nil means time.Local).
func New(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.Local
	}
	return &Formatter{Location: loc}
}

// Timestamp renders a unix-seconds field. Zero, missing or non-numeric values render as N/A.
func (f *Formatter) Timestamp(v lookup.Value) string {
	n, ok := v.Int()
	if !ok || n == 0 {
		return "N/A"
	}
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(n, 0).In(loc).Format(TimeLayout)
}

// Info renders an account info result.
func (f *Formatter) Info(res lookup.Result) string {
	switch res.Kind {
	case lookup.APIError:
		return fmt.Sprintf("❌ API Error: %d", res.Status)
	case lookup.TransportError:
		return fmt.Sprintf("❌ Error fetching info: %v", causeOf(res))
	}
	if res.Info == nil {
		return "❌ Error fetching info: empty response"
	}

	b := res.Info.Basic
	s := res.Info.Social
	c := res.Info.Clan
	p := res.Info.Pet
	pr := res.Info.Profile

	var sb strings.Builder
	section(&sb, "👤 ACCOUNT BASIC INFO",
		"Name: "+b.Nickname.Or("?"),
		"UID: "+res.UID,
		fmt.Sprintf("Level: %s (Exp: %s)", b.Level.Or("?"), b.Exp.Or("?")),
		fmt.Sprintf("Region: %s | Likes: %s", b.Region.Or("?"), b.Liked.Or("?")),
		"Gender: "+strings.TrimPrefix(s.Gender.Or("N/A"), "Gender_"),
		"Language: "+strings.TrimPrefix(s.Language.Or("N/A"), "Language_"),
		"Signature: "+s.Signature.Or("-"),
	)
	section(&sb, "🎮 ACTIVITY",
		fmt.Sprintf("BR Rank: %s (%s)", b.Rank.Or("?"), b.RankingPoints.Or("?")),
		"CS Rank: "+b.CSRank.Or("?"),
		fmt.Sprintf("Season: %s | OB: %s", b.SeasonID.Or("?"), b.ReleaseVersion.Or("?")),
		"Created: "+f.Timestamp(b.CreateAt),
		"Last Login: "+f.Timestamp(b.LastLoginAt),
	)
	section(&sb, "🛡 CLAN INFO",
		"Name: "+c.Name.Or("-"),
		fmt.Sprintf("Level: %s | Members: %s", c.Level.Or("-"), c.Members.Or("-")),
		"Leader UID: "+c.CaptainID.Or("-"),
	)
	section(&sb, "🐾 PET INFO",
		fmt.Sprintf("Level: %s | Exp: %s", p.Level.Or("-"), p.Exp.Or("-")),
		fmt.Sprintf("Skill ID: %s | Skin ID: %s", p.SelectedSkillID.Or("-"), p.SkinID.Or("-")),
		"Equipped: "+yesNo(p.IsSelected.Bool()),
	)
	section(&sb, "🧩 PROFILE",
		fmt.Sprintf("Avatar: %s | Starred: %s", pr.AvatarID.Or("-"), pr.IsMarkedStar.Or("-")),
		"Clothes: "+list(pr.Clothes),
		"Skills: "+list(pr.EquipedSkills),
	)
	section(&sb, "✅ HONOR",
		"Credit Score: "+res.Info.Credit.CreditScore.Or("-"),
	)
	return strings.TrimRight(sb.String(), "\n")
}

// Vists renders a visit stats result.
func (f *Formatter) Vists(res lookup.Result) string {
	switch res.Kind {
	case lookup.APIError:
		return fmt.Sprintf("❌ VISTS API Error: %d", res.Status)
	case lookup.TransportError:
		return fmt.Sprintf("❌ Error fetching VISTS data: %v", causeOf(res))
	}
	if res.Visit == nil {
		return "❌ Error fetching VISTS data: empty response"
	}

	v := res.Visit
	var sb strings.Builder
	section(&sb, "👤 PLAYER",
		"Name: "+v.Nickname.Or("?"),
		"UID: "+v.UID.Or(res.UID),
		fmt.Sprintf("Region: %s | Level: %s", v.Region.Or("?"), v.Level.Or("?")),
		"Likes: "+v.Likes.Or("?"),
	)
	section(&sb, "📈 VISITS",
		"Success: "+v.Success.Or("0"),
		"Fail: "+v.Fail.Or("0"),
	)
	return strings.TrimRight(sb.String(), "\n")
}

func section(sb *strings.Builder, title string, lines ...string) {
	sb.WriteString("┌ ")
	sb.WriteString(title)
	sb.WriteByte('\n')
	for i, line := range lines {
		if i == len(lines)-1 {
			sb.WriteString("└─ ")
		} else {
			sb.WriteString("├─ ")
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
}

func list(vs lookup.Values) string {
	items := vs.Strings()
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func causeOf(res lookup.Result) string {
	if res.Err == nil {
		return "unknown error"
	}
	return res.Err.Error()
}
