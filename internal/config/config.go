package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Go-ContactCal/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName        = "Go ContactCal"
	AppID          = "com.github.tartampluch.go-contactcal"
	KeyringService = "com.github.tartampluch.go-contactcal"
	KeyringToken   = "google-oauth-token"
	TokenFileName  = "token.json"
	CredsFileName  = "credentials.json"
	ConfigFileName = "config.yaml"
	LogFileName    = "go-contactcal.log"
)

// -----------------------------------------------------------------------------
// CLI Flags & Commands
// -----------------------------------------------------------------------------

const (
	CmdAuth = "auth"
	CmdRun  = "run"
	CmdSync = "sync"

	FlagConfig = "config"
	FlagDebug  = "debug"

	FlagDescConfig = "path to the YAML configuration file"
	FlagDescDebug  = "enable debug logging"

	CmdDescAuth = "Authorize access to the Google account and store the token"
	CmdDescRun  = "Run the sync coordinators and serve the calendar feeds"
	CmdDescSync = "Run sync cycles without the feed server"
	AppUsage    = "Derive recurring calendar events from your address book contacts"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	// Used for sensitive files like tokens and the config file.
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700
)

// -----------------------------------------------------------------------------
// Name Field Identifiers
// -----------------------------------------------------------------------------

// Name field identifiers mirror the People API name shapes so that remote
// payloads map onto them without translation. Sources for other backends
// (CardDAV, local vCard) map their fields onto the same identifiers.
const (
	NameFieldDisplay          = "displayName"
	NameFieldDisplayLastFirst = "displayNameLastFirst"
	NameFieldGiven            = "givenName"
	NameFieldNickname         = "nickname"
)

// DefaultNamePreference is applied when a subentry does not configure one.
var DefaultNamePreference = []string{NameFieldNickname, NameFieldDisplay}

// -----------------------------------------------------------------------------
// Date Kind Identifiers
// -----------------------------------------------------------------------------

const (
	DateKindBirthday    = "birthday"
	DateKindAnniversary = "anniversary"
	DateKindOther       = "other"
)

// -----------------------------------------------------------------------------
// Raw Contact Payload Keys
// -----------------------------------------------------------------------------

// Keys of the source-agnostic raw contact payload handed to the normalizer.
const (
	RawKeyID     = "id"
	RawKeyNames  = "names"
	RawKeyGroups = "groups"
	RawKeyDates  = "dates"
	RawKeyKind   = "kind"
	RawKeyYear   = "year"
	RawKeyMonth  = "month"
	RawKeyDay    = "day"
)

// -----------------------------------------------------------------------------
// Source Modes & Defaults
// -----------------------------------------------------------------------------

const (
	SourceModeGoogle  = "google"
	SourceModeCardDAV = "carddav"
	SourceModeLocal   = "local"

	DefaultListen      = "127.0.0.1:18080"
	ReferenceLeapYear  = 2000 // Leap year used to validate (month, day) pairs and yearless dates
	DefaultRefresh     = "@every 30m"
	DefaultHorizonDays = 365
	DefaultFeedName    = "Contacts"

	// PeoplePageSize is the page size used when listing People API connections.
	PeoplePageSize = 1000
	// GroupsPageSize is the page size used when listing contact groups.
	GroupsPageSize = 200
)

// GroupResourcePrefix is the People API resource-name prefix for contact groups.
const GroupResourcePrefix = "contactGroups/"

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	// iCal Properties
	ICalVersion = "2.0"
	ICalProdid  = "-//Go ContactCal//Engine//EN"
	ICalScale   = "GREGORIAN"
	ICalMethod  = "PUBLISH"
	ICalDomain  = "gocontactcal"

	PropUID        = "UID"
	PropSummary    = "SUMMARY"
	PropDTStart    = "DTSTART"
	PropDTStamp    = "DTSTAMP"
	PropRefresh    = "REFRESH-INTERVAL"
	PropVersion    = "VERSION"
	PropProdid     = "PRODID"
	PropXWRCalName = "X-WR-CALNAME"
	PropCalScale   = "CALSCALE"
	PropMethod     = "METHOD"

	VCardUID         = "UID"
	VCardFN          = "FN"
	VCardN           = "N"
	VCardNickname    = "NICKNAME"
	VCardBDAY        = "BDAY"
	VCardAnniversary = "ANNIVERSARY"
	VCardCategories  = "CATEGORIES"

	DefaultICalRefresh = 1 * time.Hour

	// FormatUID composes the per-year event UID: key, year, domain.
	FormatUID = "%s-%d@%s"

	// StubVCalendar is the minimal valid iCalendar object used when no events
	// are found, so feed clients never see an invalid body.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"
)

// -----------------------------------------------------------------------------
// Date layouts
// -----------------------------------------------------------------------------

const (
	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"
	DateFormatNoYearD   = "--01-02"
	DateFormatNoYearB   = "--0102"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout        = 30 * time.Second
	FetchTimeout       = 60 * time.Second
	ShutdownTimeout    = 5 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 30 * time.Second
	ServerIdleTimeout  = 60 * time.Second
	RetryAfterSeconds  = "10"
	AllowedMethods     = "GET, HEAD"
	RouteRoot          = "/"
	SchemeHTTP         = "http"
	SchemeHTTPS        = "https"
	AuthFlowTimeout    = 5 * time.Minute
	AuthCallbackRoute  = "/oauth2callback"
	AuthRedirectPort   = "18123"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`

	HTTPMsgMethodNotAllowed = "Method Not Allowed"
	HTTPMsgInitializing     = "Feed not ready yet, initial sync in progress"
	HTTPMsgNoFeed           = "No such feed"

	// RouteFeedSuffix is appended to the subentry name to form its feed path.
	RouteFeedSuffix = ".ics"
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrConfigPathEmpty  = "configuration error: config path is empty"
	ErrSubentryName     = "configuration error: subentry name is empty"
	ErrNamePrefEmpty    = "configuration error: display name preference is empty"
	ErrRefreshSpec      = "configuration error: invalid refresh schedule"
	ErrSourceMode       = "configuration error: unsupported source mode"
	ErrSourceURLEmpty   = "configuration error: source URL is empty"
	ErrSourcePathEmpty  = "configuration error: source path is empty"
	ErrRecordID         = "record is missing a stable identifier"
	ErrServerStartup    = "server startup failed"
	ErrServerShutdown   = "server shutdown failed"
	ErrListenRequired   = "listen address is required"
	ErrICalEncode       = "failed to encode iCalendar data"
	ErrDateParse        = "unable to parse date"
	ErrWriteResp        = "failed to write response body"
	ErrAppFailed        = "application failed unexpectedly"
	ErrTokenMissing     = "no stored token; run the auth command first"
	ErrCredsMissing     = "google credentials file not found"
	ErrAuthCodeMissing  = "authorization code not found in redirect"
	ErrAuthTimeout      = "authorization timed out"
	ErrAddressBookNone  = "no address book found on server"
	ErrPeopleService    = "failed to create people service"
	ErrNotRunning       = "coordinator is not running"
	ErrLogFile          = "could not open log file"
	ErrCacheDir         = "could not determine cache directory"
	ErrCreateDir        = "could not create directory"
	ErrConfigDir        = "could not determine config directory"
)

// MsgLogWarning is the stderr fallback format when file logging fails.
const MsgLogWarning = "Warning: %s (%s): %v\n"

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	MsgAppStarting    = "Starting application"
	MsgAppStop        = "Application stopped gracefully"
	MsgSyncStarted    = "Sync cycle started"
	MsgSyncSuccess    = "Sync cycle completed"
	MsgSyncFailed     = "Sync cycle failed"
	MsgSyncUnchanged  = "Sync cycle produced no changes"
	MsgSkippedRecord  = "Skipping malformed contact record"
	MsgSkippedDate    = "Skipping invalid date"
	MsgTickCoalesced  = "Refresh tick coalesced (cycle in flight)"
	MsgForceRefresh   = "Manual refresh requested"
	MsgCoordStart     = "Coordinator started"
	MsgCoordStop      = "Coordinator stopping"
	MsgServerListen   = "HTTP server listening"
	MsgServerStop     = "Shutting down HTTP server..."
	MsgFeedUpdated    = "Feed cache updated"
	MsgDeltaNotified  = "Change delta dispatched"
	MsgGroupsFetched  = "Contact groups fetched"
	MsgContactsPage   = "Contacts page fetched"
	MsgTokenSaved     = "Token saved"
	MsgTokenKeyring   = "Token stored in system keyring"
	MsgTokenFile      = "Keyring unavailable, token stored on disk"
	MsgAuthOpenURL    = "Open the following URL in your browser to authorize"
	MsgAuthDone       = "Authentication successful! You can close this window."
	MsgConfigLoaded   = "Configuration loaded"
	MsgConfigCreated  = "Default configuration written"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeySubentry  = "subentry"
	LogKeyCycle     = "cycle_id"
	LogKeyMode      = "mode"
	LogKeyCount     = "count"
	LogKeyTotal     = "total_records"
	LogKeySkipped   = "skipped"
	LogKeyEvents    = "events"
	LogKeyAdded     = "added"
	LogKeyRemoved   = "removed"
	LogKeyUpdated   = "updated"
	LogKeyDuration  = "duration_ms"
	LogKeyFile      = "file"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyPort      = "port"
	LogKeyListen    = "listen"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeyStats     = "stats"
	LogKeyGroup     = "group"
	LogKeyRefresh   = "refresh"
	LogKeyStale     = "stale"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompEngine = "engine"
	CompSync   = "sync"
	CompSource = "source"
	CompAuth   = "auth"
	CompFeed   = "feed"
	CompServer = "server"
	CompConfig = "config"
	CompMain   = "main"
)
