package core

import (
	"encoding/json"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

const (
	// DefaultCurrency is the symbol assigned to new accounts.
	DefaultCurrency = "₹"
	// DefaultBudgetCents is 10000.00 in the account currency.
	DefaultBudgetCents int64 = 1_000_000

	DefaultCategoryColor = "#3b82f6"
	DefaultCategoryIcon  = "tag"

	dateLayout = "2006-01-02"
)

type (
	Theme string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID           int64     `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		Settings     Settings  `json:"settings"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Settings struct {
		MonthlyBudget Money  `json:"monthly_budget"`
		Currency      string `json:"currency"`
		Theme         Theme  `json:"theme"`
	}

	// SettingsPatch carries the fields a settings update explicitly sets.
	SettingsPatch struct {
		MonthlyBudget *Money  `json:"monthly_budget,omitempty"`
		Currency      *string `json:"currency,omitempty"`
		Theme         *Theme  `json:"theme,omitempty"`
	}

	// Category belongs to OwnerID; OwnerID 0 marks a global template row.
	Category struct {
		ID        int64     `json:"id"`
		OwnerID   int64     `json:"user_id,omitempty"`
		Name      string    `json:"name"`
		Color     string    `json:"color"`
		Icon      string    `json:"icon"`
		CreatedAt time.Time `json:"created_at"`
	}

	Expense struct {
		ID            int64     `json:"id"`
		OwnerID       int64     `json:"user_id"`
		Title         string    `json:"title"`
		Amount        Money     `json:"amount"`
		Category      string    `json:"category"`
		PaymentMethod string    `json:"payment_method"`
		Date          Date      `json:"date"`
		Notes         string    `json:"notes"`
		CreatedAt     time.Time `json:"created_at"`
	}

	// ExpensePatch holds the fields an update explicitly sets; nil fields keep
	// their stored value.
	ExpensePatch struct {
		Title         *string `json:"title,omitempty"`
		Amount        *Money  `json:"amount,omitempty"`
		Category      *string `json:"category,omitempty"`
		PaymentMethod *string `json:"payment_method,omitempty"`
		Date          *Date   `json:"date,omitempty"`
		Notes         *string `json:"notes,omitempty"`
	}

	// ExpenseFilter narrows an owner's expense list. Zero values match all.
	// Category and PaymentMethod match exactly; Search is a case-insensitive
	// substring match on title or notes.
	ExpenseFilter struct {
		Category      string
		PaymentMethod string
		Search        string
		From          Date
		To            Date
	}
)

var (
	ErrInvalidDate       = Invalid("date", "must be a valid YYYY-MM-DD date")
	ErrInvalidAmount     = Invalid("amount", "must be greater than zero")
	ErrEmptyTitle        = Invalid("title", "is required")
	ErrTitleTooLong      = Invalid("title", "too long (max 200 characters)")
	ErrEmptyCategory     = Invalid("category", "is required")
	ErrUnknownCategory   = Invalid("category", "does not match any of your categories")
	ErrEmptyPayment      = Invalid("payment_method", "is required")
	ErrInvalidBudget     = Invalid("monthly_budget", "must be a positive number")
	ErrInvalidTheme      = Invalid("theme", "must be light or dark")
	ErrInvalidCurrency   = Invalid("currency", "must be 1 to 8 characters")
	ErrEmptyName         = Invalid("name", "is required")
	ErrInvalidEmail      = Invalid("email", "is not a valid address")
	ErrWeakPassword      = Invalid("password", "must be at least 6 characters")
	ErrPasswordTooLong   = Invalid("password", "must be at most 72 bytes")
	ErrInvalidColor      = Invalid("color", "must be a #rrggbb hex color")
	ErrCategoryNameLong  = Invalid("name", "too long (max 50 characters)")
	ErrEmptySettingPatch = Invalid("settings", "no fields to update")
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// DefaultSettings returns the settings every new account starts with.
func DefaultSettings() Settings {
	return Settings{
		MonthlyBudget: Money{Cents: DefaultBudgetCents},
		Currency:      DefaultCurrency,
		Theme:         ThemeLight,
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// SameMonth reports whether d falls in the calendar month of t.
func (d Date) SameMonth(t time.Time) bool {
	return d.Year() == t.Year() && d.Month() == t.Month()
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps as well; only the calendar day is kept.
	if len(s) > len(dateLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			*d = DateOf(t)
			return nil
		}
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

func (s Settings) Validate() error {
	if s.MonthlyBudget.Cents <= 0 {
		return ErrInvalidBudget
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(s.Currency)); n == 0 || n > 8 {
		return ErrInvalidCurrency
	}
	if !s.Theme.Valid() {
		return ErrInvalidTheme
	}
	return nil
}

// Apply returns s with every field set in p overwritten.
func (s Settings) Apply(p SettingsPatch) Settings {
	if p.MonthlyBudget != nil {
		s.MonthlyBudget = *p.MonthlyBudget
	}
	if p.Currency != nil {
		s.Currency = strings.TrimSpace(*p.Currency)
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	return s
}

// Empty reports whether the patch sets nothing.
func (p SettingsPatch) Empty() bool {
	return p.MonthlyBudget == nil && p.Currency == nil && p.Theme == nil
}

// MaxPasswordBytes is the longest password accepted at sign-up.
const MaxPasswordBytes = 72

// ValidateRegistration checks the fields accepted at sign-up.
func ValidateRegistration(name, email, password string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	if len(password) < 6 {
		return ErrWeakPassword
	}
	// bcrypt only hashes the first 72 bytes.
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// NormalizeEmail is applied before every email lookup or insert.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (c Category) IsTemplate() bool {
	return c.OwnerID == 0
}

// WithDefaults fills color and icon when left empty.
func (c Category) WithDefaults() Category {
	c.Name = strings.TrimSpace(c.Name)
	if strings.TrimSpace(c.Color) == "" {
		c.Color = DefaultCategoryColor
	}
	if strings.TrimSpace(c.Icon) == "" {
		c.Icon = DefaultCategoryIcon
	}
	return c
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > 50 {
		return ErrCategoryNameLong
	}
	if c.Color != "" && !hexColor.MatchString(c.Color) {
		return ErrInvalidColor
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(e.Title) > 200 {
		return ErrTitleTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(e.PaymentMethod) == "" {
		return ErrEmptyPayment
	}
	return nil
}

// Apply returns e with every field set in p overwritten.
func (e Expense) Apply(p ExpensePatch) Expense {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = strings.TrimSpace(*p.Category)
	}
	if p.PaymentMethod != nil {
		e.PaymentMethod = strings.TrimSpace(*p.PaymentMethod)
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Notes != nil {
		e.Notes = strings.TrimSpace(*p.Notes)
	}
	return e
}

// Empty reports whether the patch sets nothing.
func (p ExpensePatch) Empty() bool {
	return p.Title == nil && p.Amount == nil && p.Category == nil &&
		p.PaymentMethod == nil && p.Date == nil && p.Notes == nil
}

// Match reports whether e passes every criterion set in f.
func (f ExpenseFilter) Match(e Expense) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.PaymentMethod != "" && e.PaymentMethod != f.PaymentMethod {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To.Time) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(e.Title), q) && !strings.Contains(strings.ToLower(e.Notes), q) {
			return false
		}
	}
	return true
}

func (f ExpenseFilter) Validate() error {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return Invalid("to", "must not be before from")
	}
	return nil
}
