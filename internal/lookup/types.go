package lookup

// Kind tags a Result.
type Kind int

const (
	Success Kind = iota
	APIError
	TransportError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case APIError:
		return "api_error"
	case TransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of one lookup call. Exactly one of Info/Visit is set
// on Success; Status is set on APIError; Err is set on TransportError.
type Result struct {
	Kind   Kind
	UID    string
	Info   *AccountInfo
	Visit  *VisitStats
	Status int
	Err    error
}

// AccountInfo is the account info lookup response.
type AccountInfo struct {
	Basic   BasicInfo   `json:"basicInfo"`
	Social  SocialInfo  `json:"socialInfo"`
	Clan    ClanInfo    `json:"clanBasicInfo"`
	Pet     PetInfo     `json:"petInfo"`
	Credit  CreditInfo  `json:"creditScoreInfo"`
	Profile ProfileInfo `json:"profileInfo"`
}

type BasicInfo struct {
	Nickname       Value `json:"nickname"`
	Level          Value `json:"level"`
	Exp            Value `json:"exp"`
	Region         Value `json:"region"`
	Liked          Value `json:"liked"`
	Rank           Value `json:"rank"`
	RankingPoints  Value `json:"rankingPoints"`
	CSRank         Value `json:"csRank"`
	SeasonID       Value `json:"seasonId"`
	ReleaseVersion Value `json:"releaseVersion"`
	CreateAt       Value `json:"createAt"`
	LastLoginAt    Value `json:"lastLoginAt"`
}

type SocialInfo struct {
	Gender    Value `json:"gender"`
	Language  Value `json:"language"`
	Signature Value `json:"signature"`
}

type ClanInfo struct {
	Name      Value `json:"clanName"`
	Level     Value `json:"clanLevel"`
	Members   Value `json:"memberNum"`
	CaptainID Value `json:"captainId"`
}

type PetInfo struct {
	Level           Value `json:"level"`
	Exp             Value `json:"exp"`
	SelectedSkillID Value `json:"selectedSkillId"`
	SkinID          Value `json:"skinId"`
	IsSelected      Value `json:"isSelected"`
}

type CreditInfo struct {
	CreditScore Value `json:"creditScore"`
}

type ProfileInfo struct {
	AvatarID      Value  `json:"avatarId"`
	IsMarkedStar  Value  `json:"isMarkedStar"`
	Clothes       Values `json:"clothes"`
	EquipedSkills Values `json:"equipedSkills"`
}

// VisitStats is the visit stats lookup response.
type VisitStats struct {
	Nickname Value `json:"nickname"`
	UID      Value `json:"uid"`
	Region   Value `json:"region"`
	Level    Value `json:"level"`
	Likes    Value `json:"likes"`
	Success  Value `json:"success"`
	Fail     Value `json:"fail"`
}
