package scanner

// builtinModuleNames lists the standard-library and platform modules that
// never count as package dependencies. Matching is case-sensitive.
var builtinModuleNames = []string{
	// Swift toolchain.
	"Swift", "SwiftUI", "SwiftData", "RegexBuilder", "Observation",
	"Distributed", "Synchronization", "Testing", "XCTest",
	"PackageDescription", "CompilerPluginSupport", "SwiftOnoneSupport",

	// C interop and platform shims.
	"Darwin", "Glibc", "Musl", "WinSDK", "CRT", "ObjectiveC",
	"Dispatch", "DispatchIntrospection", "os", "simd", "System", "XPC",

	// Foundation family.
	"Foundation", "FoundationEssentials", "FoundationNetworking",
	"FoundationXML", "CoreFoundation",

	// AppKit, UIKit and friends.
	"AppKit", "UIKit", "WatchKit", "TVUIKit", "Cocoa", "CarPlay",
	"WidgetKit", "ActivityKit", "AppIntents", "AppClip", "PencilKit",
	"TipKit", "Accessibility", "Charts", "Combine",

	// Graphics and games.
	"CoreGraphics", "CoreImage", "CoreText", "QuartzCore", "Metal",
	"MetalKit", "MetalFX", "ModelIO", "SceneKit", "SpriteKit", "GameKit",
	"GameplayKit", "GameController", "RealityKit", "ARKit", "Vision",
	"VisionKit", "ImageIO", "PDFKit", "OpenGLES",

	// Audio and video.
	"AVFoundation", "AVKit", "AudioToolbox", "AudioUnit", "CoreAudio",
	"CoreAudioKit", "CoreMIDI", "CoreMedia", "CoreVideo", "VideoToolbox",
	"MediaPlayer", "MusicKit", "ShazamKit", "SoundAnalysis",
	"ScreenCaptureKit",

	// Data and persistence.
	"CoreData", "CloudKit", "CoreSpotlight", "FileProvider",
	"FileProviderUI", "UniformTypeIdentifiers", "OSLog", "SQLite3",
	"TabularData",

	// Networking and system services.
	"Network", "NetworkExtension", "SystemConfiguration",
	"MultipeerConnectivity", "NearbyInteraction", "ExternalAccessory",
	"IOKit", "IOBluetooth", "CoreBluetooth", "ServiceManagement",
	"OSAKit", "EndpointSecurity", "Virtualization",

	// Security and identity.
	"Security", "CryptoKit", "CryptoTokenKit", "LocalAuthentication",
	"AuthenticationServices", "DeviceCheck", "SafariServices", "WebKit",

	// Machine learning and language.
	"CoreML", "CreateML", "NaturalLanguage", "Speech", "Translation",
	"JavaScriptCore",

	// Location, motion, health.
	"CoreLocation", "CoreMotion", "CoreHaptics", "MapKit", "HealthKit",
	"HealthKitUI", "SensorKit", "HomeKit", "Matter", "WeatherKit",
	"CoreNFC", "CoreTelephony", "CoreWLAN", "CoreTransferable",

	// Apps and user services.
	"Accounts", "AdServices", "AdSupport", "AppTrackingTransparency",
	"BackgroundTasks", "CallKit", "ClassKit", "ClockKit", "Contacts",
	"ContactsUI", "EventKit", "EventKitUI", "Intents", "IntentsUI",
	"LinkPresentation", "MessageUI", "Messages", "NotificationCenter",
	"PassKit", "Photos", "PhotosUI", "PushKit", "QuickLook",
	"QuickLookThumbnailing", "ReplayKit", "Social", "StoreKit",
	"StoreKitTest", "UserNotifications", "UserNotificationsUI",
	"GroupActivities", "IdentityLookup", "ManagedSettings", "MetricKit",
	"MobileCoreServices", "ScreenTime", "ExposureNotification",
	"ExtensionKit", "ExtensionFoundation",
}

// builtinModules is the process-wide read-only set built once at startup and
// shared across concurrent scans without synchronization.
var builtinModules = func() map[string]struct{} {
	set := make(map[string]struct{}, len(builtinModuleNames))
	for _, name := range builtinModuleNames {
		set[name] = struct{}{}
	}

	return set
}()

// Builtin reports whether module is on the built-in standard and platform
// module list. Matching is case-sensitive.
func Builtin(module string) bool {
	_, ok := builtinModules[module]

	return ok
}
