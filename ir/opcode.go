package ir

// Op is an opcode mnemonic. The catalogue below is the union of the
// tier-1..tier-4 opcode families the core verifier understands; a
// host may register additional opcodes through verify.Extension
// without modifying this package.
type Op uint16

const (
	OpUnknown Op = iota

	// --- tier 1: always legal, state-undecided safe ---

	OpLabel       // {label, L}: introduce a join point
	OpLine        // source-line marker, no semantic effect
	OpFuncInfo    // func_info Mod, Name, Arity
	OpBadmatch    // terminal: raises badmatch
	OpCaseEnd     // terminal: raises case_clause
	OpTryCaseEnd  // terminal: raises try_clause
	OpIfEnd       // terminal: raises if_clause
	OpBsContextToBinary
	OpMove
	OpSwap
	OpGetHd
	OpGetTl
	OpGetList
	OpMoveFromFR
	OpMoveToFR
	OpAllocHeapZero
	OpAllocHeap
	OpGcBifMarker // marks a pure BIF with no branch, still tier 1
	OpPutList
	OpPutTuple
	OpPut
	OpPutTuple2
	OpReceiveMarker
	OpTrim
	OpAllocate
	OpAllocateZero
	OpAllocateHeap
	OpAllocateHeapZero
	OpDeallocate
	OpCatch
	OpCatchEnd
	OpTry
	OpTryEnd
	OpGetTupleElement
	OpJump

	// --- tier 2: may branch on catch/try ---

	OpBifMayFail // pure BIFs that can raise (e.g. arithmetic)

	// --- tier 3: floating point ---

	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFNegate
	OpFClearerror
	OpFCheckerror
	OpFMove

	// --- tier 4: everything else ---

	OpCall
	OpCallLast
	OpCallOnly
	OpCallExt
	OpCallExtLast
	OpCallExtOnly
	OpCallFun
	OpReturn
	OpLoopRec
	OpLoopRecEnd
	OpWait
	OpWaitTimeout
	OpTimeout
	OpSend
	OpRemoveMessage
	OpSetTupleElement
	OpSelectVal
	OpSelectTupleArity
	OpBsStartMatch2
	OpBsMatchString
	OpBsSkipBits
	OpBsSkipUtf8
	OpBsTestTail2
	OpBsTestUnit
	OpBsGetInteger2
	OpBsGetBinary2
	OpBsGetFloat2
	OpBsGetUtf8
	OpBsSave2
	OpBsRestore2
	OpIsFloat
	OpIsTuple
	OpIsNonemptyList
	OpTestArity
	OpIsTaggedTuple
	OpHasMapFields
	OpIsMap
	OpIsEqExact
	OpTest
	OpBsInit2
	OpBsInitBits
	OpBsAppend
	OpBsPrivateAppend
	OpBsPutInteger
	OpBsPutBinary
	OpBsPutFloat
	OpBsPutString
	OpBsAdd
	OpBsUtf8Size
	OpBsUtf16Size
	OpPutMapAssoc
	OpPutMapExact
	OpGetMapElements
	OpGcBif // gc_bif: calls that may collect and prune X-regs to Live
	OpTupleSize
	OpElement
	OpHd
	OpTl
	OpMapGet
	OpIsMapKey

	opCount
)

var opNames = map[Op]string{
	OpLabel: "label", OpLine: "line", OpFuncInfo: "func_info",
	OpBadmatch: "badmatch", OpCaseEnd: "case_end", OpTryCaseEnd: "try_case_end", OpIfEnd: "if_end",
	OpBsContextToBinary: "bs_context_to_binary",
	OpMove: "move", OpSwap: "swap", OpGetHd: "get_hd", OpGetTl: "get_tl", OpGetList: "get_list",
	OpMoveFromFR: "fmove_from", OpMoveToFR: "fmove_to",
	OpAllocHeapZero: "heap_zero", OpAllocHeap: "heap",
	OpGcBifMarker: "gc_bif_marker",
	OpPutList: "put_list", OpPutTuple: "put_tuple", OpPut: "put", OpPutTuple2: "put_tuple2",
	OpReceiveMarker: "loop_rec_marker", OpTrim: "trim",
	OpAllocate: "allocate", OpAllocateZero: "allocate_zero",
	OpAllocateHeap: "allocate_heap", OpAllocateHeapZero: "allocate_heap_zero",
	OpDeallocate: "deallocate",
	OpCatch: "catch", OpCatchEnd: "catch_end", OpTry: "try", OpTryEnd: "try_end",
	OpGetTupleElement: "get_tuple_element", OpJump: "jump",
	OpBifMayFail: "bif",
	OpFAdd: "fadd", OpFSub: "fsub", OpFMul: "fmul", OpFDiv: "fdiv", OpFNegate: "fnegate",
	OpFClearerror: "fclearerror", OpFCheckerror: "fcheckerror", OpFMove: "fmove",
	OpCall: "call", OpCallLast: "call_last", OpCallOnly: "call_only",
	OpCallExt: "call_ext", OpCallExtLast: "call_ext_last", OpCallExtOnly: "call_ext_only",
	OpCallFun: "call_fun", OpReturn: "return",
	OpLoopRec: "loop_rec", OpLoopRecEnd: "loop_rec_end", OpWait: "wait", OpWaitTimeout: "wait_timeout",
	OpTimeout: "timeout", OpSend: "send", OpRemoveMessage: "remove_message",
	OpSetTupleElement: "set_tuple_element", OpSelectVal: "select_val", OpSelectTupleArity: "select_tuple_arity",
	OpBsStartMatch2: "bs_start_match2", OpBsMatchString: "bs_match_string",
	OpBsSkipBits: "bs_skip_bits", OpBsSkipUtf8: "bs_skip_utf8",
	OpBsTestTail2: "bs_test_tail2", OpBsTestUnit: "bs_test_unit",
	OpBsGetInteger2: "bs_get_integer2", OpBsGetBinary2: "bs_get_binary2",
	OpBsGetFloat2: "bs_get_float2", OpBsGetUtf8: "bs_get_utf8",
	OpBsSave2: "bs_save2", OpBsRestore2: "bs_restore2",
	OpIsFloat: "is_float", OpIsTuple: "is_tuple", OpIsNonemptyList: "is_nonempty_list",
	OpTestArity: "test_arity", OpIsTaggedTuple: "is_tagged_tuple", OpHasMapFields: "has_map_fields",
	OpIsMap: "is_map", OpIsEqExact: "is_eq_exact", OpTest: "test",
	OpBsInit2: "bs_init2", OpBsInitBits: "bs_init_bits", OpBsAppend: "bs_append",
	OpBsPrivateAppend: "bs_private_append", OpBsPutInteger: "bs_put_integer",
	OpBsPutBinary: "bs_put_binary", OpBsPutFloat: "bs_put_float", OpBsPutString: "bs_put_string",
	OpBsAdd: "bs_add", OpBsUtf8Size: "bs_utf8_size", OpBsUtf16Size: "bs_utf16_size",
	OpPutMapAssoc: "put_map_assoc", OpPutMapExact: "put_map_exact", OpGetMapElements: "get_map_elements",
	OpGcBif: "gc_bif", OpTupleSize: "tuple_size", OpElement: "element",
	OpHd: "hd", OpTl: "tl", OpMapGet: "map_get", OpIsMapKey: "is_map_key",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "unknown"
}

// Instruction is one tagged-tuple instruction: an opcode plus its
// operand list, as produced by the (out-of-scope) code-representation
// parser.
type Instruction struct {
	Op       Op
	Args     []Operand
	Ext      string // non-empty for verify.Extension-registered opcodes not in this catalog
}

func (i Instruction) String() string {
	name := i.Op.String()
	if i.Op == OpUnknown && i.Ext != "" {
		name = i.Ext
	}
	if len(i.Args) == 0 {
		return name
	}
	s := name
	for _, a := range i.Args {
		s += " " + a.String()
	}
	return s
}
