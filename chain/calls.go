package chain

// Module is the pallet that hosts every subtensor call.
const Module = "SubtensorModule"

// Subtensor dispatchables.
const (
	FuncRegister          = "register"
	FuncBurnedRegister    = "burned_register"
	FuncRegisterNetwork   = "register_network"
	FuncSetWeights        = "set_weights"
	FuncSetSubnetIdentity = "set_subnet_identity"
)

// AlreadyRegisteredError is the module error raised when a hotkey already holds a slot on the subnet.
const AlreadyRegisteredError = "HotKeyAlreadyRegisteredInSubNet"

// NotWaitingMessage reports a submission that was not awaited.
const NotWaitingMessage = "Not waiting for finalization or inclusion."
