// Package errors provides per-category constructors and quick helpers
// for the error conditions the device actually hits.
package errors

import "fmt"

// -----------------------------------------------------------------------------
// Per-Category Constructors
// -----------------------------------------------------------------------------
// These combine New/Wrap with the category so call sites only name the code.

// Validation creates a validation error.
// Use for experiment validation, schema violations, or bad command input.
// The error code should be one of the ErrValidation*/ErrExperiment* constants.
func Validation(code, message string) *DeviceError {
	return New(code, CategoryValidation, message)
}

// Validationf creates a validation error with a formatted message.
func Validationf(code, format string, args ...interface{}) *DeviceError {
	return Validation(code, fmt.Sprintf(format, args...))
}

// ValidationWrap wraps an error as a validation error.
func ValidationWrap(cause error, code, message string) *DeviceError {
	return Wrap(cause, code, CategoryValidation, message)
}

// Trial creates a trial error.
// Use for trial registry lookups, parameter decoding, and session lifecycle.
// The error code should be one of the ErrTrial*/ErrSession* constants.
func Trial(code, message string) *DeviceError {
	return New(code, CategoryTrial, message)
}

// Trialf creates a trial error with a formatted message.
func Trialf(code, format string, args ...interface{}) *DeviceError {
	return Trial(code, fmt.Sprintf(format, args...))
}

// TrialWrap wraps an error as a trial error.
func TrialWrap(cause error, code, message string) *DeviceError {
	return Wrap(cause, code, CategoryTrial, message)
}

// Hardware creates a hardware error.
// Use for GPIO, I2C, and display failures.
// The error code should be one of the ErrHardware*/ErrGPIO*/ErrDisplay* constants.
func Hardware(code, message string) *DeviceError {
	return New(code, CategoryHardware, message)
}

// Hardwaref creates a hardware error with a formatted message.
func Hardwaref(code, format string, args ...interface{}) *DeviceError {
	return Hardware(code, fmt.Sprintf(format, args...))
}

// HardwareWrap wraps an error as a hardware error.
func HardwareWrap(cause error, code, message string) *DeviceError {
	return Wrap(cause, code, CategoryHardware, message)
}

// Persistence creates a persistence error.
// Use for session file writes and data exports.
// The error code should be one of the ErrData*/ErrExport* constants.
func Persistence(code, message string) *DeviceError {
	return New(code, CategoryPersistence, message)
}

// Persistencef creates a persistence error with a formatted message.
func Persistencef(code, format string, args ...interface{}) *DeviceError {
	return Persistence(code, fmt.Sprintf(format, args...))
}

// PersistenceWrap wraps an error as a persistence error.
func PersistenceWrap(cause error, code, message string) *DeviceError {
	return Wrap(cause, code, CategoryPersistence, message)
}

// Transport creates a transport error.
// Use for WebSocket server and client connection failures.
// The error code should be one of the ErrTransport* constants.
func Transport(code, message string) *DeviceError {
	return New(code, CategoryTransport, message)
}

// Transportf creates a transport error with a formatted message.
func Transportf(code, format string, args ...interface{}) *DeviceError {
	return Transport(code, fmt.Sprintf(format, args...))
}

// TransportWrap wraps an error as a transport error.
func TransportWrap(cause error, code, message string) *DeviceError {
	return Wrap(cause, code, CategoryTransport, message)
}

// Config creates a configuration error.
// Use for config file parsing, missing files, or invalid configuration values.
// The error code should be one of the ErrConfig* constants.
func Config(code, message string) *DeviceError {
	return New(code, CategoryConfig, message)
}

// Configf creates a configuration error with a formatted message.
func Configf(code, format string, args ...interface{}) *DeviceError {
	return Config(code, fmt.Sprintf(format, args...))
}

// ConfigWrap wraps an error as a configuration error.
func ConfigWrap(cause error, code, message string) *DeviceError {
	return Wrap(cause, code, CategoryConfig, message)
}

// Internal creates an internal/unexpected error.
// Use for programming errors, invariant violations, or unexpected states.
func Internal(code, message string) *DeviceError {
	return New(code, CategoryInternal, message)
}

// Internalf creates an internal error with a formatted message.
func Internalf(code, format string, args ...interface{}) *DeviceError {
	return Internal(code, fmt.Sprintf(format, args...))
}

// InternalWrap wraps an error as an internal error.
func InternalWrap(cause error, code, message string) *DeviceError {
	return Wrap(cause, code, CategoryInternal, message)
}

// -----------------------------------------------------------------------------
// Quick Constructors for Common Error Conditions
// -----------------------------------------------------------------------------
// Convenience functions for the errors raised most often, with suggestions
// attached where the operator can actually do something about it.

// ConfigNotFound creates a CONFIG_NOT_FOUND error.
func ConfigNotFound(path string) *DeviceError {
	return Configf(ErrConfigNotFound, "configuration file not found").
		WithContext("path", path).
		WithSuggestion("Run 'boxd config init' to create a default config file")
}

// ConfigParseError creates a CONFIG_PARSE_FAILED error.
func ConfigParseError(path string, cause error) *DeviceError {
	return ConfigWrap(cause, ErrConfigParseFailed, "failed to parse configuration file").
		WithContext("path", path).
		WithSuggestion("Check the file for YAML syntax errors")
}

// ExperimentInvalid creates an EXPERIMENT_INVALID error.
func ExperimentInvalid(reason string) *DeviceError {
	return Validationf(ErrExperimentInvalid, "invalid experiment: %s", reason).
		WithContext("reason", reason)
}

// TrialSpecInvalid creates a TRIAL_SPEC_INVALID error for a timeline entry.
func TrialSpecInvalid(index int, reason string) *DeviceError {
	return Validationf(ErrTrialSpecInvalid, "invalid trial at index %d: %s", index, reason).
		WithContext("index", fmt.Sprintf("%d", index))
}

// TrialTypeUnknown creates a TRIAL_TYPE_UNKNOWN error.
func TrialTypeUnknown(trialType string) *DeviceError {
	return Trialf(ErrTrialTypeUnknown, "unknown trial type: %s", trialType).
		WithContext("type", trialType)
}

// TrialParamsInvalid creates a TRIAL_PARAMS_INVALID error.
func TrialParamsInvalid(trialType string, cause error) *DeviceError {
	return TrialWrap(cause, ErrTrialParamsInvalid, "invalid trial parameters").
		WithContext("type", trialType)
}

// SessionRunning creates a SESSION_ALREADY_RUNNING error.
func SessionRunning() *DeviceError {
	return Trial(ErrSessionRunning, "an experiment is already running").
		WithSuggestion("Stop the current experiment before starting another")
}

// SessionNotRunning creates a SESSION_NOT_RUNNING error.
func SessionNotRunning() *DeviceError {
	return Trial(ErrSessionNotRunning, "no experiment is running")
}

// SessionNoExperiment creates a SESSION_NO_EXPERIMENT error.
func SessionNoExperiment() *DeviceError {
	return Trial(ErrSessionNoExperiment, "no experiment has been uploaded").
		WithSuggestion("Upload an experiment before starting a session")
}

// HardwareInit creates a HARDWARE_INIT_FAILED error.
func HardwareInit(component string, cause error) *DeviceError {
	return HardwareWrap(cause, ErrHardwareInitFailed, "hardware initialization failed").
		WithContext("component", component).
		WithSuggestion("Run with 'boxd simulate' if no GPIO hardware is attached")
}

// PinNotFound creates a GPIO_PIN_NOT_FOUND error.
func PinNotFound(name string) *DeviceError {
	return Hardwaref(ErrGPIOPinNotFound, "GPIO pin not found: %s", name).
		WithContext("pin", name)
}

// DisplayInit creates a DISPLAY_INIT_FAILED error for an OLED at addr.
func DisplayInit(addr uint16, cause error) *DeviceError {
	return HardwareWrap(cause, ErrDisplayInitFailed, "display initialization failed").
		WithContext("addr", fmt.Sprintf("%#04x", addr)).
		WithSuggestion("Check the I2C wiring and address jumpers")
}

// TestUnknown creates a TEST_UNKNOWN error.
func TestUnknown(name string) *DeviceError {
	return Hardwaref(ErrTestUnknown, "unknown hardware test: %s", name).
		WithContext("test", name)
}

// TestAlreadyRunning creates a TEST_ALREADY_RUNNING error.
func TestAlreadyRunning(name string) *DeviceError {
	return Hardwaref(ErrTestAlreadyRunning, "hardware test already running: %s", name).
		WithContext("test", name)
}

// DataDirNotFound creates a DATA_DIR_NOT_FOUND error.
func DataDirNotFound(path string) *DeviceError {
	return Persistence(ErrDataDirNotFound, "data directory does not exist").
		WithContext("path", path).
		WithSuggestion("Create the directory or change data.dir in the config")
}

// DataDirNotWritable creates a DATA_DIR_NOT_WRITABLE error.
func DataDirNotWritable(path string) *DeviceError {
	return Persistence(ErrDataDirNotWritable, "data directory is not writable").
		WithContext("path", path).
		WithSuggestion("Check directory permissions")
}

// DataWriteError creates a DATA_WRITE_FAILED error.
func DataWriteError(path string, cause error) *DeviceError {
	return PersistenceWrap(cause, ErrDataWriteFailed, "failed to write session file").
		WithContext("path", path)
}

// ExportNoData creates an EXPORT_NO_DATA error.
func ExportNoData(dir string) *DeviceError {
	return Persistence(ErrExportNoData, "no session files to export").
		WithContext("dir", dir).
		WithSuggestion("Run an experiment first to produce session data")
}

// MessageInvalid creates a TRANSPORT_MESSAGE_INVALID error.
func MessageInvalid(cause error) *DeviceError {
	return TransportWrap(cause, ErrTransportMessageInvalid, "could not parse inbound message")
}

// ListenError creates a TRANSPORT_LISTEN_FAILED error.
func ListenError(addr string, cause error) *DeviceError {
	return TransportWrap(cause, ErrTransportListenFailed, "failed to bind listen address").
		WithContext("addr", addr).
		WithSuggestion("Check whether another boxd instance is already running")
}

// InternalPanic creates an INTERNAL_PANIC error for recovered panics.
func InternalPanic(recovered interface{}) *DeviceError {
	return Internalf(ErrInternalPanic, "panic recovered: %v", recovered)
}
