package core

import (
	"fmt"
	"strings"
	"time"
)

type AuthenticationSource string

const (
	AuthenticationSourceBrowser           AuthenticationSource = "BROWSER"
	AuthenticationSourceMerchantInitiated AuthenticationSource = "MERCHANT_INITIATED"
	AuthenticationSourceMobileSDK         AuthenticationSource = "MOBILE_SDK"
)

type MethodURLCompletion string

const (
	MethodURLCompletionYes         MethodURLCompletion = "YES"
	MethodURLCompletionNo          MethodURLCompletion = "NO"
	MethodURLCompletionUnavailable MethodURLCompletion = "UNAVAILABLE"
)

type ChallengeRequestIndicator string

const (
	ChallengeNoPreference                     ChallengeRequestIndicator = "NO_PREFERENCE"
	ChallengeNoChallengeRequested             ChallengeRequestIndicator = "NO_CHALLENGE_REQUESTED"
	ChallengeNoChallengeRiskAnalysisPerformed ChallengeRequestIndicator = "NO_CHALLENGE_REQUESTED_TRANSACTION_RISK_ANALYSIS_PERFORMED"
	ChallengeNoChallengeScaAlreadyPerformed   ChallengeRequestIndicator = "NO_CHALLENGE_REQUESTED_SCA_ALREADY_PERFORMED"
	ChallengeNoChallengeWhitelist             ChallengeRequestIndicator = "NO_CHALLENGE_REQUESTED_WHITELIST"
	ChallengePreferred                        ChallengeRequestIndicator = "CHALLENGE_PREFERRED"
	ChallengeMandated                         ChallengeRequestIndicator = "CHALLENGE_MANDATED"
	ChallengeRequestedPromptForWhitelist      ChallengeRequestIndicator = "CHALLENGE_REQUESTED_PROMPT_FOR_WHITELIST"
)

type ChallengeWindowSize string

const (
	ChallengeWindowWindowed250x400 ChallengeWindowSize = "WINDOWED_250X400"
	ChallengeWindowWindowed390x400 ChallengeWindowSize = "WINDOWED_390X400"
	ChallengeWindowWindowed500x600 ChallengeWindowSize = "WINDOWED_500X600"
	ChallengeWindowWindowed600x400 ChallengeWindowSize = "WINDOWED_600X400"
	ChallengeWindowFullScreen      ChallengeWindowSize = "FULL_SCREEN"
)

type ShippingMethod string

const (
	ShippingMethodBillingAddress  ShippingMethod = "BILLING_ADDRESS"
	ShippingMethodVerifiedAddress ShippingMethod = "ANOTHER_VERIFIED_ADDRESS"
	ShippingMethodUnverified      ShippingMethod = "UNVERIFIED_ADDRESS"
	ShippingMethodShipToStore     ShippingMethod = "SHIP_TO_STORE"
	ShippingMethodDigitalGoods    ShippingMethod = "DIGITAL_GOODS"
	ShippingMethodTravelAndEvent  ShippingMethod = "TRAVEL_AND_EVENT_TICKETS"
	ShippingMethodOther           ShippingMethod = "OTHER"
)

type AgeIndicator string

const (
	AgeIndicatorThisTransaction AgeIndicator = "THIS_TRANSACTION"
	AgeIndicatorLessThan30Days  AgeIndicator = "LESS_THAN_30_DAYS"
	AgeIndicator30To60Days      AgeIndicator = "30_TO_60_DAYS"
	AgeIndicatorMoreThan60Days  AgeIndicator = "MORE_THAN_60_DAYS"
)

type DeliveryTimeFrame string

const (
	DeliveryElectronic    DeliveryTimeFrame = "ELECTRONIC_DELIVERY"
	DeliverySameDay       DeliveryTimeFrame = "SAME_DAY"
	DeliveryOvernight     DeliveryTimeFrame = "OVERNIGHT"
	DeliveryTwoDaysOrMore DeliveryTimeFrame = "TWO_DAYS_OR_MORE"
)

type MessageCategory string

const (
	MessageCategoryPayment    MessageCategory = "PAYMENT_AUTHENTICATION"
	MessageCategoryNonPayment MessageCategory = "NON_PAYMENT_AUTHENTICATION"
)

type Address struct {
	StreetAddress1 string
	StreetAddress2 string
	StreetAddress3 string
	City           string
	State          string
	PostalCode     string
	CountryCode    string
}

func (a Address) Empty() bool {
	return strings.TrimSpace(a.StreetAddress1+a.StreetAddress2+a.StreetAddress3+
		a.City+a.State+a.PostalCode+a.CountryCode) == ""
}

type BrowserData struct {
	AcceptHeader        string
	ColorDepth          int
	IPAddress           string
	JavaEnabled         bool
	JavaScriptEnabled   bool
	Language            string
	ScreenHeight        int
	ScreenWidth         int
	ChallengeWindowSize ChallengeWindowSize
	Timezone            string
	UserAgent           string
}

type StoredCredential struct {
	Initiator string
	Type      string
	Sequence  string
	Reason    string
}

type GiftCard struct {
	Count    int
	Amount   string
	Currency string
}

// AuthenticationParams carries the optional risk signals of an initiation.
// They influence frictionless versus challenge outcomes only.
type AuthenticationParams struct {
	AuthenticationSource              AuthenticationSource
	MethodURLCompletion               MethodURLCompletion
	MessageCategory                   MessageCategory
	ChallengeRequestIndicator         ChallengeRequestIndicator
	OrderCreateDate                   *time.Time
	ShippingAddress                   *Address
	BrowserData                       *BrowserData
	StoredCredential                  *StoredCredential
	ShippingMethod                    ShippingMethod
	ShippingNameMatchesCardHolderName *bool
	ShippingAddressCreateDate         *time.Time
	ShippingAddressUsageIndicator     AgeIndicator
	GiftCard                          *GiftCard
	DeliveryEmail                     string
	DeliveryTimeFrame                 DeliveryTimeFrame
}

// ParamKind is the closed set of initiation parameters accepted by Set.
type ParamKind int

const (
	ParamAuthenticationSource ParamKind = iota + 1
	ParamMethodURLCompletion
	ParamMessageCategory
	ParamChallengeRequestIndicator
	ParamOrderCreateDate
	ParamShippingAddress
	ParamBrowserData
	ParamStoredCredential
	ParamShippingMethod
	ParamShippingNameMatchesCardHolderName
	ParamShippingAddressCreateDate
	ParamShippingAddressUsageIndicator
	ParamGiftCard
	ParamDeliveryEmail
	ParamDeliveryTimeFrame
)

var paramKindNames = map[ParamKind]string{
	ParamAuthenticationSource:              "authentication_source",
	ParamMethodURLCompletion:               "method_url_completion",
	ParamMessageCategory:                   "message_category",
	ParamChallengeRequestIndicator:         "challenge_request_indicator",
	ParamOrderCreateDate:                   "order_create_date",
	ParamShippingAddress:                   "shipping_address",
	ParamBrowserData:                       "browser_data",
	ParamStoredCredential:                  "stored_credential",
	ParamShippingMethod:                    "shipping_method",
	ParamShippingNameMatchesCardHolderName: "shipping_name_matches_cardholder_name",
	ParamShippingAddressCreateDate:         "shipping_address_create_date",
	ParamShippingAddressUsageIndicator:     "shipping_address_usage_indicator",
	ParamGiftCard:                          "gift_card",
	ParamDeliveryEmail:                     "delivery_email",
	ParamDeliveryTimeFrame:                 "delivery_time_frame",
}

func (k ParamKind) String() string {
	if name, ok := paramKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("param(%d)", int(k))
}

type ParamSetter func(*AuthenticationParams, any) error

// paramSetters maps every ParamKind to a setter that only accepts the
// parameter's own Go type.
var paramSetters = map[ParamKind]ParamSetter{
	ParamAuthenticationSource:              setter(func(p *AuthenticationParams, v AuthenticationSource) { p.AuthenticationSource = v }),
	ParamMethodURLCompletion:               setter(func(p *AuthenticationParams, v MethodURLCompletion) { p.MethodURLCompletion = v }),
	ParamMessageCategory:                   setter(func(p *AuthenticationParams, v MessageCategory) { p.MessageCategory = v }),
	ParamChallengeRequestIndicator:         setter(func(p *AuthenticationParams, v ChallengeRequestIndicator) { p.ChallengeRequestIndicator = v }),
	ParamOrderCreateDate:                   setter(func(p *AuthenticationParams, v time.Time) { p.OrderCreateDate = timePointer(v) }),
	ParamShippingAddress:                   setter(func(p *AuthenticationParams, v Address) { p.ShippingAddress = &v }),
	ParamBrowserData:                       setter(func(p *AuthenticationParams, v BrowserData) { p.BrowserData = &v }),
	ParamStoredCredential:                  setter(func(p *AuthenticationParams, v StoredCredential) { p.StoredCredential = &v }),
	ParamShippingMethod:                    setter(func(p *AuthenticationParams, v ShippingMethod) { p.ShippingMethod = v }),
	ParamShippingNameMatchesCardHolderName: setter(func(p *AuthenticationParams, v bool) { p.ShippingNameMatchesCardHolderName = &v }),
	ParamShippingAddressCreateDate:         setter(func(p *AuthenticationParams, v time.Time) { p.ShippingAddressCreateDate = timePointer(v) }),
	ParamShippingAddressUsageIndicator:     setter(func(p *AuthenticationParams, v AgeIndicator) { p.ShippingAddressUsageIndicator = v }),
	ParamGiftCard:                          setter(func(p *AuthenticationParams, v GiftCard) { p.GiftCard = &v }),
	ParamDeliveryEmail:                     setter(func(p *AuthenticationParams, v string) { p.DeliveryEmail = strings.TrimSpace(v) }),
	ParamDeliveryTimeFrame:                 setter(func(p *AuthenticationParams, v DeliveryTimeFrame) { p.DeliveryTimeFrame = v }),
}

func setter[T any](apply func(*AuthenticationParams, T)) ParamSetter {
	return func(params *AuthenticationParams, value any) error {
		typed, ok := value.(T)
		if !ok {
			var zero T
			return fmt.Errorf("core: expected %T, got %T", zero, value)
		}
		apply(params, typed)
		return nil
	}
}

// Set applies value to the parameter named by kind.
func (p *AuthenticationParams) Set(kind ParamKind, value any) error {
	if p == nil {
		return fmt.Errorf("core: authentication params are nil")
	}
	apply, ok := paramSetters[kind]
	if !ok {
		return fmt.Errorf("core: unknown authentication param %s", kind)
	}
	if err := apply(p, value); err != nil {
		return fmt.Errorf("core: set %s: %w", kind, err)
	}
	return nil
}

// ParamsBuilder collects initiation parameters and reports the first setter
// failure on Build.
type ParamsBuilder struct {
	params AuthenticationParams
	err    error
}

func NewParamsBuilder() *ParamsBuilder {
	return &ParamsBuilder{}
}

func (b *ParamsBuilder) With(kind ParamKind, value any) *ParamsBuilder {
	if b == nil || b.err != nil {
		return b
	}
	b.err = b.params.Set(kind, value)
	return b
}

func (b *ParamsBuilder) WithAuthenticationSource(source AuthenticationSource) *ParamsBuilder {
	return b.With(ParamAuthenticationSource, source)
}

func (b *ParamsBuilder) WithMethodURLCompletion(completion MethodURLCompletion) *ParamsBuilder {
	return b.With(ParamMethodURLCompletion, completion)
}

func (b *ParamsBuilder) WithChallengeRequestIndicator(indicator ChallengeRequestIndicator) *ParamsBuilder {
	return b.With(ParamChallengeRequestIndicator, indicator)
}

func (b *ParamsBuilder) WithOrderCreateDate(at time.Time) *ParamsBuilder {
	return b.With(ParamOrderCreateDate, at)
}

func (b *ParamsBuilder) WithShippingAddress(address Address) *ParamsBuilder {
	return b.With(ParamShippingAddress, address)
}

func (b *ParamsBuilder) WithBrowserData(data BrowserData) *ParamsBuilder {
	return b.With(ParamBrowserData, data)
}

func (b *ParamsBuilder) WithStoredCredential(credential StoredCredential) *ParamsBuilder {
	return b.With(ParamStoredCredential, credential)
}

func (b *ParamsBuilder) WithGiftCard(card GiftCard) *ParamsBuilder {
	return b.With(ParamGiftCard, card)
}

func (b *ParamsBuilder) Build() (AuthenticationParams, error) {
	if b == nil {
		return AuthenticationParams{}, nil
	}
	if b.err != nil {
		return AuthenticationParams{}, b.err
	}
	return b.params, nil
}

func timePointer(value time.Time) *time.Time {
	if value.IsZero() {
		return nil
	}
	utc := value.UTC()
	return &utc
}
