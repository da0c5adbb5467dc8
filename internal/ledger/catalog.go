package ledger

const (
	TypeFirstPoints   = "first_points"
	TypeMilestone100  = "milestone_100"
	TypeMilestone500  = "milestone_500"
	TypeMilestone1000 = "milestone_1000"
	TypeHighRoller    = "high_roller"
	TypeEmailVerified = "email_verified"
)

// Definition is one entry of the static achievement catalog. An entry is
// due when the balance reaches MinBalance, or, for RequiresEmail entries,
// when a processed email submission exists for the user.
type Definition struct {
	Type          string
	Name          string
	Description   string
	Reward        int64
	MinBalance    int64
	RequiresEmail bool
}

func (d Definition) due(balance int64, emailProcessed bool) bool {
	if d.RequiresEmail {
		return emailProcessed
	}
	return balance >= d.MinBalance
}

// Catalog is evaluated in order; earlier entries are awarded first.
var Catalog = []Definition{
	{
		Type:        TypeFirstPoints,
		Name:        "First Points Earned",
		Description: "Earned your first points!",
		Reward:      50,
		MinBalance:  1,
	},
	{
		Type:        TypeMilestone100,
		Name:        "100 Points Milestone",
		Description: "Reached 100 total points!",
		Reward:      25,
		MinBalance:  100,
	},
	{
		Type:        TypeMilestone500,
		Name:        "500 Points Milestone",
		Description: "Reached 500 total points!",
		Reward:      75,
		MinBalance:  500,
	},
	{
		Type:        TypeMilestone1000,
		Name:        "1000 Points Milestone",
		Description: "Reached 1000 total points!",
		Reward:      150,
		MinBalance:  1000,
	},
	{
		Type:        TypeHighRoller,
		Name:        "High Roller",
		Description: "Accumulated over 2000 points!",
		Reward:      300,
		MinBalance:  2000,
	},
	{
		Type:          TypeEmailVerified,
		Name:          "Email Verified",
		Description:   "Successfully submitted and verified email!",
		Reward:        100,
		RequiresEmail: true,
	},
}
