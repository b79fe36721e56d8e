package core

import (
	"fmt"
	"slices"
)

type RequestShape string

const (
	ShapeV1Enrollment RequestShape = "V1_ENROLLMENT"
	ShapeV2Browser    RequestShape = "V2_BROWSER"
	ShapeV2Merchant   RequestShape = "V2_MERCHANT_INITIATED"
	ShapeV2SDK        RequestShape = "V2_MOBILE_SDK"
)

type Negotiation struct {
	Version Version
	Shape   RequestShape
}

type VersionNegotiator interface {
	Negotiate(requested Version, source AuthenticationSource, method PaymentMethodSource) (Negotiation, error)
}

// VersionStrategy picks a version when the caller did not request one.
type VersionStrategy func(supported []Version) (Version, bool)

// HighestSupportedVersion prefers 3DS2 whenever the method allows it.
func HighestSupportedVersion(supported []Version) (Version, bool) {
	if slices.Contains(supported, VersionTwo) {
		return VersionTwo, true
	}
	if slices.Contains(supported, VersionOne) {
		return VersionOne, true
	}
	return "", false
}

type DefaultVersionNegotiator struct {
	Strategy VersionStrategy
}

func NewVersionNegotiator(strategy VersionStrategy) DefaultVersionNegotiator {
	return DefaultVersionNegotiator{Strategy: strategy}
}

func (n DefaultVersionNegotiator) Negotiate(
	requested Version,
	source AuthenticationSource,
	method PaymentMethodSource,
) (Negotiation, error) {
	if method == nil {
		return Negotiation{}, NewUnsupportedVersionError(requested, "payment method is required for 3DS")
	}
	supported := supportedVersions(method)
	if len(supported) == 0 {
		return Negotiation{}, NewUnsupportedVersionError(requested, fmt.Sprintf("payment method %T does not support 3DS", method))
	}

	version := requested
	if version == "" {
		strategy := n.Strategy
		if strategy == nil {
			strategy = HighestSupportedVersion
		}
		picked, ok := strategy(supported)
		if !ok {
			return Negotiation{}, NewUnsupportedVersionError(requested, "no protocol version could be selected")
		}
		version = picked
	}
	if !version.Valid() {
		return Negotiation{}, NewUnsupportedVersionError(version, "unknown protocol version")
	}
	if !slices.Contains(supported, version) {
		return Negotiation{}, NewUnsupportedVersionError(version, fmt.Sprintf("payment method %T does not support 3DS version %s", method, version))
	}

	if version == VersionOne {
		if source != "" && source != AuthenticationSourceBrowser {
			return Negotiation{}, NewUnsupportedVersionError(version, fmt.Sprintf("authentication source %s requires 3DS version TWO", source))
		}
		return Negotiation{Version: VersionOne, Shape: ShapeV1Enrollment}, nil
	}
	switch source {
	case AuthenticationSourceMerchantInitiated:
		return Negotiation{Version: VersionTwo, Shape: ShapeV2Merchant}, nil
	case AuthenticationSourceMobileSDK:
		return Negotiation{Version: VersionTwo, Shape: ShapeV2SDK}, nil
	default:
		return Negotiation{Version: VersionTwo, Shape: ShapeV2Browser}, nil
	}
}

func supportedVersions(method PaymentMethodSource) []Version {
	capable, ok := method.(VersionCapable)
	if !ok {
		return []Version{VersionOne, VersionTwo}
	}
	out := make([]Version, 0, 2)
	for _, version := range capable.SupportedVersions() {
		if version.Valid() && !slices.Contains(out, version) {
			out = append(out, version)
		}
	}
	return out
}
