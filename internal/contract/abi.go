package contract

// dmsdABI covers the subset of the DMSD contract the dashboard calls.
const dmsdABI = `[
  {"type":"function","name":"getUser","stateMutability":"view",
   "inputs":[{"name":"_user","type":"address"}],
   "outputs":[
     {"name":"username","type":"string"},
     {"name":"userEmail","type":"string"},
     {"name":"isRegistered","type":"bool"},
     {"name":"isAdmin","type":"bool"},
     {"name":"subscribed","type":"bool"}]},
  {"type":"function","name":"getRecoveryWallets","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"address[2]"}]},
  {"type":"function","name":"getWalletToProtect","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getPersonalMultiSig","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getPersonalMultiSigBalance","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getApprovals","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getApprovalsFromWalletToProtect","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"isWalletToProtect","stateMutability":"view",
   "inputs":[{"name":"_wallet","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"registerAdmin","stateMutability":"nonpayable",
   "inputs":[{"name":"_username","type":"string"},{"name":"_email","type":"string"}],"outputs":[]},
  {"type":"function","name":"subscribeAdmin","stateMutability":"nonpayable",
   "inputs":[],"outputs":[]},
  {"type":"function","name":"createPersonalMultisig","stateMutability":"nonpayable",
   "inputs":[{"name":"_recoveryWallets","type":"address[2]"},{"name":"_walletToProtect","type":"address"}],"outputs":[]},
  {"type":"function","name":"validateApproval","stateMutability":"nonpayable",
   "inputs":[],"outputs":[]},
  {"type":"function","name":"approveTransfer","stateMutability":"nonpayable",
   "inputs":[],"outputs":[]},
  {"type":"function","name":"transferFromToMultisig","stateMutability":"nonpayable",
   "inputs":[{"name":"_amount","type":"uint256"}],"outputs":[]}
]`

// multiSigABI covers the personal multisig wallet deployed per subscriber.
const multiSigABI = `[
  {"type":"function","name":"getOwners","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"address[]"}]}
]`

const (
	methodGetUser                         = "getUser"
	methodGetRecoveryWallets              = "getRecoveryWallets"
	methodGetWalletToProtect              = "getWalletToProtect"
	methodGetPersonalMultiSig             = "getPersonalMultiSig"
	methodGetPersonalMultiSigBalance      = "getPersonalMultiSigBalance"
	methodGetApprovals                    = "getApprovals"
	methodGetApprovalsFromWalletToProtect = "getApprovalsFromWalletToProtect"
	methodIsWalletToProtect               = "isWalletToProtect"
	methodGetOwners                       = "getOwners"

	MethodRegisterAdmin          = "registerAdmin"
	MethodSubscribeAdmin         = "subscribeAdmin"
	MethodCreatePersonalMultisig = "createPersonalMultisig"
	MethodValidateApproval       = "validateApproval"
	MethodApproveTransfer        = "approveTransfer"
	MethodTransferToMultisig     = "transferFromToMultisig"
)
