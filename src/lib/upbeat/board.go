package upbeat

import "fmt"

func BoardRevisionDecode(s string) string {
	switch s {
	case "9020e0":
		return "3A+, Revision 1.0, 512MB, Sony UK"
	case "a02082":
		return "3B, Revision 1.2, 1GB, Sony UK"
	case "a020d3":
		return "3B+, Revision 1.3, 1GB, Sony UK"
	case "a22082":
		return "3B, Revision 1.2, 1GB, Embest"
	case "a220a0":
		return "CM3, Revision 1.0, 1GB, Embest"
	case "a32082":
		return "3B, Revision 1.2, 1GB, Sony Japan"
	case "a52082":
		return "3B, Revision 1.2, 1GB, Stadium"
	case "a22083":
		return "3B, Revision 1.3, 1GB, Embest"
	case "a02100":
		return "CM3+, Revision 1.0, 1GB, Sony UK"
	case "a03111":
		return "4B, Revision 1.1, 2GB, Sony UK"
	case "b03111":
		return "4B, Revision 1.2, 2GB, Sony UK"
	case "b03112":
		return "4B, Revision 1.2, 2GB, Sony UK"
	case "c03111":
		return "4B, Revision 1.1, 4GB, Sony UK"
	case "c03112":
		return "4B, Revision 1.2, 4GB, Sony UK"
	}
	return "unknown board"
}

// ExceptionClass decodes the EC field (bits 31:26) of ESR_EL1.
func ExceptionClass(esr uint64) string {
	exceptionClass := esr >> 26
	switch exceptionClass {
	case 0:
		return fmt.Sprintf("unknown exception (%d)", exceptionClass)
	case 1:
		return "trapped WFE or WFI instruction"
	case 3, 4:
		return "trapped MCRR or MRRC access"
	case 5:
		return "trapped MRC or MCR access"
	case 6:
		return "trapped LDC or STC access"
	case 7:
		return "access to SVE, advanced SIMD or FP functionality"
	case 12:
		return "trapped MRRC access"
	case 13:
		return "branch target exception"
	case 14:
		return "illegal execution state"
	case 17:
		return fmt.Sprintf("SVC instruction in AARCH32 [%d]", esr&0xffff)
	case 21:
		return fmt.Sprintf("SVC instruction in AARCH64 [%d]", esr&0xffff)
	case 24:
		return "trapped MRS, MSR or System instruction in AARCH64"
	case 25:
		return "access to SVE functionality"
	case 32:
		return "instruction abort from lower exception level"
	case 33:
		return "instruction abort from same exception level"
	case 34:
		return "PC alignment fault"
	case 36:
		return "data abort from lower exception level"
	case 37:
		return "data abort from same exception level"
	case 38:
		return "SP alignment fault"
	case 40:
		return "trapped floating point exception from AARCH32"
	case 44:
		return "trapped floating point exception from AARCH64"
	case 47:
		return "SError exception"
	case 48:
		return "Breakpoint from lower exception level"
	case 49:
		return "Breakpoint from same exception level"
	case 50:
		return "Software step from lower exception level"
	case 51:
		return "Software step from same exception level"
	case 52:
		return "Watchpoint from lower exception level"
	case 53:
		return "Watchpoint from same exception level"
	case 56:
		return "BKPT from AARCH32"
	case 60:
		return "BRK from AARCH64"
	}
	return fmt.Sprintf("unused exception code, should never happen (%d)", exceptionClass)
}
