package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Component is a peer deployment participating in federation. A component is
// created either explicitly by an administrator or lazily the first time an
// entity from an unknown UUID is referenced during an import.
type Component struct {
	Id int `gorm:"primaryKey"`

	UUID        uuid.UUID `gorm:"type:uuid;unique;not null"`
	Name        *string   `gorm:"unique;size:100"`
	Description string

	Address      *string `gorm:"size:2048"`
	Discoverable bool    `gorm:"not null;default:true"`

	LastSyncTimestamp *time.Time

	ExportTokens []ComponentAuthentication    `gorm:"foreignKey:ComponentId;constraint:OnDelete:CASCADE"`
	ImportTokens []OwnComponentAuthentication `gorm:"foreignKey:ComponentId;constraint:OnDelete:CASCADE"`
}

func (c *Component) GetName() string {
	if c.Name != nil {
		return *c.Name
	}
	return c.UUID.String()
}

// ComponentAuthentication is a token a peer uses to authenticate requests to
// this deployment. Only a sha256 hash of the token is stored.
type ComponentAuthentication struct {
	Id          int    `gorm:"primaryKey"`
	ComponentId int    `gorm:"not null;index"`
	LoginHash   string `gorm:"size:128;not null;uniqueIndex"`
	Description string `gorm:"size:500"`
}

// OwnComponentAuthentication is a token this deployment uses to authenticate
// to a peer. It is stored in plain text since it must be sent on requests.
type OwnComponentAuthentication struct {
	Id          int    `gorm:"primaryKey"`
	ComponentId int    `gorm:"not null;index"`
	Token       string `gorm:"size:128;not null"`
	Description string `gorm:"size:500"`
}

// User is either a local user (ComponentId == nil) or a shadow copy of a user
// on a peer component. Shadow users carry no credentials.
type User struct {
	Id int `gorm:"primaryKey"`

	Name        *string `gorm:"size:100"`
	Email       *string `gorm:"size:254"`
	Orcid       *string `gorm:"size:100"`
	Affiliation *string `gorm:"size:100"`
	Role        *string `gorm:"size:100"`

	Password []byte
	IsAdmin  bool `gorm:"not null;default:false"`

	FedId       *int       `gorm:"uniqueIndex:idx_users_fed"`
	ComponentId *int       `gorm:"uniqueIndex:idx_users_fed"`
	Component   *Component `gorm:"constraint:OnDelete:RESTRICT"`
}

func (u *User) IsLocal() bool {
	return u.ComponentId == nil
}

func (u *User) GetName() string {
	if u.Name != nil {
		return *u.Name
	}
	return fmt.Sprintf("user #%d", u.Id)
}

// UserAlias is the persona a local user presents to a specific component.
// Each field can independently fall back to the real profile value.
type UserAlias struct {
	UserId      int `gorm:"primaryKey"`
	ComponentId int `gorm:"primaryKey"`

	Name        *string `gorm:"size:100"`
	Email       *string `gorm:"size:254"`
	Orcid       *string `gorm:"size:100"`
	Affiliation *string `gorm:"size:100"`
	Role        *string `gorm:"size:100"`

	UseRealName        bool `gorm:"not null;default:false"`
	UseRealEmail       bool `gorm:"not null;default:false"`
	UseRealOrcid       bool `gorm:"not null;default:false"`
	UseRealAffiliation bool `gorm:"not null;default:false"`
	UseRealRole        bool `gorm:"not null;default:false"`

	LastModified time.Time
}

// FederatedIdentity links a local user to a shadow user imported from a peer
// component. LocalFedId is the local row id of the shadow user. A revoked
// link is kept with Active == false so it can be re-enabled later.
type FederatedIdentity struct {
	Id int `gorm:"primaryKey"`

	UserId     int `gorm:"not null;index"`
	LocalFedId int `gorm:"not null;uniqueIndex"`

	Active bool `gorm:"not null;default:true"`

	User    *User `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE"`
	FedUser *User `gorm:"foreignKey:LocalFedId;constraint:OnDelete:CASCADE"`
}

// ActionType categorizes actions (e.g. sample creation, measurement).
type ActionType struct {
	Id int `gorm:"primaryKey"`

	AdminOnly            bool `gorm:"not null;default:false"`
	ShowOnFrontpage      bool `gorm:"not null;default:false"`
	ShowInNavbar         bool `gorm:"not null;default:false"`
	EnableLabels         bool `gorm:"not null;default:true"`
	EnableFiles          bool `gorm:"not null;default:true"`
	DisableCreateObjects bool `gorm:"not null;default:false"`

	FedId       *int       `gorm:"uniqueIndex:idx_action_types_fed"`
	ComponentId *int       `gorm:"uniqueIndex:idx_action_types_fed"`
	Component   *Component `gorm:"constraint:OnDelete:RESTRICT"`

	Translations []ActionTypeTranslation `gorm:"foreignKey:ActionTypeId;constraint:OnDelete:CASCADE"`
}

type ActionTypeTranslation struct {
	ActionTypeId int    `gorm:"primaryKey"`
	LangCode     string `gorm:"primaryKey;size:10"`

	Name        string `gorm:"size:100"`
	Description string

	ObjectName       string `gorm:"size:100"`
	ObjectNamePlural string `gorm:"size:100"`
}

// Action describes a process that creates objects. Schema holds the action's
// object schema as a JSON document; it is nil for placeholder shadows.
type Action struct {
	Id int `gorm:"primaryKey"`

	TypeId       *int        `gorm:"index"`
	Type         *ActionType `gorm:"foreignKey:TypeId"`
	InstrumentId *int        `gorm:"index"`
	Instrument   *Instrument `gorm:"foreignKey:InstrumentId"`
	UserId       *int        `gorm:"index"`
	User         *User       `gorm:"foreignKey:UserId"`

	Schema *string

	DescriptionIsMarkdown      bool `gorm:"not null;default:false"`
	ShortDescriptionIsMarkdown bool `gorm:"not null;default:false"`
	IsHidden                   bool `gorm:"not null;default:false"`
	AdminOnly                  bool `gorm:"not null;default:false"`
	DisableCreateObjects       bool `gorm:"not null;default:false"`

	FedId       *int       `gorm:"uniqueIndex:idx_actions_fed"`
	ComponentId *int       `gorm:"uniqueIndex:idx_actions_fed"`
	Component   *Component `gorm:"constraint:OnDelete:RESTRICT"`

	Translations []ActionTranslation `gorm:"foreignKey:ActionId;constraint:OnDelete:CASCADE"`
}

type ActionTranslation struct {
	ActionId int    `gorm:"primaryKey"`
	LangCode string `gorm:"primaryKey;size:10"`

	Name             string `gorm:"size:100"`
	Description      string
	ShortDescription string
}

type Instrument struct {
	Id int `gorm:"primaryKey"`

	DescriptionIsMarkdown      bool `gorm:"not null;default:false"`
	ShortDescriptionIsMarkdown bool `gorm:"not null;default:false"`
	NotesIsMarkdown            bool `gorm:"not null;default:false"`
	IsHidden                   bool `gorm:"not null;default:false"`

	FedId       *int       `gorm:"uniqueIndex:idx_instruments_fed"`
	ComponentId *int       `gorm:"uniqueIndex:idx_instruments_fed"`
	Component   *Component `gorm:"constraint:OnDelete:RESTRICT"`

	Translations []InstrumentTranslation `gorm:"foreignKey:InstrumentId;constraint:OnDelete:CASCADE"`
}

type InstrumentTranslation struct {
	InstrumentId int    `gorm:"primaryKey"`
	LangCode     string `gorm:"primaryKey;size:10"`

	Name             string `gorm:"size:100"`
	Description      string
	ShortDescription string
	Notes            string
}

// Location is a place where objects can be stored. Name and Description are
// JSON documents mapping language codes to translated strings.
type Location struct {
	Id int `gorm:"primaryKey"`

	Name        *string
	Description *string

	ParentLocationId *int      `gorm:"index"`
	ParentLocation   *Location `gorm:"foreignKey:ParentLocationId"`

	FedId       *int       `gorm:"uniqueIndex:idx_locations_fed"`
	ComponentId *int       `gorm:"uniqueIndex:idx_locations_fed"`
	Component   *Component `gorm:"constraint:OnDelete:RESTRICT"`
}

// Object is a sample, measurement or simulation record. Data and Schema hold
// the current version's JSON documents.
type Object struct {
	Id int `gorm:"primaryKey"`

	VersionId int `gorm:"not null;default:0"`

	ActionId *int    `gorm:"index"`
	Action   *Action `gorm:"foreignKey:ActionId"`
	UserId   *int    `gorm:"index"`
	User     *User   `gorm:"foreignKey:UserId"`

	Data   *string
	Schema *string

	FedObjectId  *int       `gorm:"uniqueIndex:idx_objects_fed"`
	FedVersionId *int
	ComponentId  *int       `gorm:"uniqueIndex:idx_objects_fed"`
	Component    *Component `gorm:"constraint:OnDelete:RESTRICT"`
}

// ObjectShare records that an object has been shared with a component under a
// JSON-encoded access policy. Unique per (object, component); updated on every
// successful sync, never auto-deleted.
type ObjectShare struct {
	ObjectId    int `gorm:"primaryKey"`
	ComponentId int `gorm:"primaryKey"`

	Policy       string `gorm:"not null"`
	UTCDatetime  time.Time
	UserId       *int
	ImportStatus *string

	Object    *Object    `gorm:"foreignKey:ObjectId;constraint:OnDelete:CASCADE"`
	Component *Component `gorm:"foreignKey:ComponentId;constraint:OnDelete:CASCADE"`
}

// MarkdownImage is a binary blob referenced by filename from markdown text.
// Images imported from a peer carry that peer's component id; locally uploaded
// images use component id 0.
type MarkdownImage struct {
	FileName    string `gorm:"primaryKey;size:256"`
	ComponentId int    `gorm:"primaryKey"`

	Content []byte `gorm:"not null"`
}

// FedLogEntry is the persistent audit log of federation imports. One entry is
// written per created, updated or placeholder-created shadow entity.
type FedLogEntry struct {
	Id int `gorm:"primaryKey"`

	Type        string `gorm:"size:50;not null;index"`
	EntityType  string `gorm:"size:50;not null;index"`
	EntityId    int    `gorm:"not null;index"`
	ComponentId int    `gorm:"not null;index"`

	UTCDatetime time.Time
}
