package joy

import "fmt"

const subsystemMask = 0x00ff_0000_0000_0000
const familyIDMask = 0x0000_ffff_0000_0000
const errorNumberMask = 0x0000_0000_0000_ffff

// Memory Errors
const MemorySubsystem = 1
const MemoryPageAlreadyInUse = 1
const MemoryPageNotAvailable = 2
const MemoryBadPageRequest = 3
const MemoryAlreadyFree = 4

var ErrorMemoryPageAlreadyInUse = errorValue(MemorySubsystem, MemoryPageAlreadyInUse)
var ErrorMemoryPageNotAvailable = errorValue(MemorySubsystem, MemoryPageNotAvailable)
var ErrorMemoryBadPageRequest = errorValue(MemorySubsystem, MemoryBadPageRequest)
var ErrorMemoryAlreadyFree = errorValue(MemorySubsystem, MemoryAlreadyFree)

// Family Errors
const FamilySubsystem = 2
const FamilyNoMoreFamilies = 1
const FamilyNotFound = 2
const FamilyIsKernel = 3
const FamilyStillRunning = 4

var ErrorFamilyNoMoreFamilies = errorValue(FamilySubsystem, FamilyNoMoreFamilies)
var ErrorFamilyNotFound = errorValue(FamilySubsystem, FamilyNotFound)
var ErrorFamilyIsKernel = errorValue(FamilySubsystem, FamilyIsKernel)
var ErrorFamilyStillRunning = errorValue(FamilySubsystem, FamilyStillRunning)

// JoyError is a RawJoyError with the family that hit it filled in.
type JoyError uint64
type RawJoyError uint64 // error with just the constant part of the value filled in

var errorMap = map[RawJoyError]string{
	ErrorMemoryPageAlreadyInUse: "memory page is already in use by other process",
	ErrorMemoryPageNotAvailable: "not enough contiguous free pages",
	ErrorMemoryBadPageRequest:   "bad page request",
	ErrorMemoryAlreadyFree:      "memory page is already free",
	ErrorFamilyNoMoreFamilies:   "no free family slots",
	ErrorFamilyNotFound:         "no such family",
	ErrorFamilyIsKernel:         "family zero can't exit",
	ErrorFamilyStillRunning:     "family has not exited",
}

func (j JoyError) Error() string {
	t, ok := errorMap[j.Raw()]
	if !ok {
		return "Unknown error code"
	}
	return fmt.Sprintf("Family %d: %s", j.Family(), t)
}

// Raw drops the dynamic fields, leaving something to compare against.
func (j JoyError) Raw() RawJoyError {
	return RawJoyError(uint64(j) &^ familyIDMask)
}

func (j JoyError) Family() FamilyId {
	return FamilyId((uint64(j) & familyIDMask) >> 32)
}

// Is lets errors.Is match a JoyError against the raw error it came from.
func (j JoyError) Is(target error) bool {
	switch t := target.(type) {
	case RawJoyError:
		return j.Raw() == t
	case JoyError:
		return j == t
	}
	return false
}

func (r RawJoyError) Error() string {
	t, ok := errorMap[r]
	if !ok {
		return "Unknown error code"
	}
	return t
}

func errorValue(subsys byte, errorNumber uint16) RawJoyError {
	ss := subsystemMask & (uint64(subsys) << 48)
	en := errorNumberMask & (uint64(errorNumber) << 0)
	return RawJoyError(ss | en)
}

// makeError adds the dynamic fields (the family at fault) to the error value.
func makeError(rawError RawJoyError, id FamilyId) JoyError {
	raw := uint64(rawError)
	fid := (uint64(id) << 32) & familyIDMask
	return JoyError(raw | fid)
}
