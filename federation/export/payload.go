package export

// Protocol version of the export document. Importers must reject payloads
// with an unsupported major version.
const (
	ProtocolVersionMajor = 0
	ProtocolVersionMinor = 1
)

type ProtocolVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

type Header struct {
	DbUUID          string          `json:"db_uuid"`
	TargetUUID      string          `json:"target_uuid"`
	ProtocolVersion ProtocolVersion `json:"protocol_version"`
	SyncTimestamp   string          `json:"sync_timestamp"`
}

// Per-entity reference pairs. A nil pointer on the wire always means "no
// reference".

type ActionRef struct {
	ActionId      int    `json:"action_id"`
	ComponentUUID string `json:"component_uuid"`
}

type ActionTypeRef struct {
	ActionTypeId  int    `json:"action_type_id"`
	ComponentUUID string `json:"component_uuid"`
}

type InstrumentRef struct {
	InstrumentId  int    `json:"instrument_id"`
	ComponentUUID string `json:"component_uuid"`
}

type UserRef struct {
	UserId        int    `json:"user_id"`
	ComponentUUID string `json:"component_uuid"`
}

type LocationRef struct {
	LocationId    int    `json:"location_id"`
	ComponentUUID string `json:"component_uuid"`
}

type ActionTranslationData struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	ShortDescription string `json:"short_description"`
}

type ActionData struct {
	ActionId      int    `json:"action_id"`
	ComponentUUID string `json:"component_uuid"`

	ActionType *ActionTypeRef `json:"action_type"`
	Instrument *InstrumentRef `json:"instrument"`
	User       *UserRef       `json:"user"`

	Schema map[string]interface{} `json:"schema"`

	DescriptionIsMarkdown      bool `json:"description_is_markdown"`
	ShortDescriptionIsMarkdown bool `json:"short_description_is_markdown"`
	IsHidden                   bool `json:"is_hidden"`
	AdminOnly                  bool `json:"admin_only"`
	DisableCreateObjects       bool `json:"disable_create_objects"`

	Translations map[string]ActionTranslationData `json:"translations"`
}

type ActionTypeTranslationData struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	ObjectName       string `json:"object_name"`
	ObjectNamePlural string `json:"object_name_plural"`
}

type ActionTypeData struct {
	ActionTypeId  int    `json:"action_type_id"`
	ComponentUUID string `json:"component_uuid"`

	AdminOnly            bool `json:"admin_only"`
	ShowOnFrontpage      bool `json:"show_on_frontpage"`
	ShowInNavbar         bool `json:"show_in_navbar"`
	EnableLabels         bool `json:"enable_labels"`
	EnableFiles          bool `json:"enable_files"`
	DisableCreateObjects bool `json:"disable_create_objects"`

	Translations map[string]ActionTypeTranslationData `json:"translations"`
}

type InstrumentTranslationData struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	ShortDescription string `json:"short_description"`
	Notes            string `json:"notes"`
}

type InstrumentData struct {
	InstrumentId  int    `json:"instrument_id"`
	ComponentUUID string `json:"component_uuid"`

	DescriptionIsMarkdown      bool `json:"description_is_markdown"`
	ShortDescriptionIsMarkdown bool `json:"short_description_is_markdown"`
	NotesIsMarkdown            bool `json:"notes_is_markdown"`
	IsHidden                   bool `json:"is_hidden"`

	Translations map[string]InstrumentTranslationData `json:"translations"`
}

type UserData struct {
	UserId        int    `json:"user_id"`
	ComponentUUID string `json:"component_uuid"`

	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Orcid       *string `json:"orcid"`
	Affiliation *string `json:"affiliation"`
	Role        *string `json:"role"`
}

type LocationData struct {
	LocationId    int    `json:"location_id"`
	ComponentUUID string `json:"component_uuid"`

	Name        map[string]string `json:"name"`
	Description map[string]string `json:"description"`

	ParentLocation *LocationRef `json:"parent_location"`
}

type ObjectData struct {
	ObjectId      int    `json:"object_id"`
	VersionId     int    `json:"version_id"`
	ComponentUUID string `json:"component_uuid"`

	Action *ActionRef `json:"action"`
	User   *UserRef   `json:"user"`

	Data   map[string]interface{} `json:"data"`
	Schema map[string]interface{} `json:"schema"`

	Policy map[string]interface{} `json:"policy"`

	UTCDatetime string `json:"utc_datetime"`
}

// Payload is the complete export document sent to a requesting peer.
type Payload struct {
	Header Header `json:"header"`

	Actions     []ActionData     `json:"actions"`
	Users       []UserData       `json:"users"`
	Instruments []InstrumentData `json:"instruments"`
	Locations   []LocationData   `json:"locations"`
	Objects     []ObjectData     `json:"objects"`
	ActionTypes []ActionTypeData `json:"action_types"`

	MarkdownImages map[string]string `json:"markdown_images"`
}
