package decoder

// Minimal router ABIs with only the swap entry points the indexer attributes

const AMMV2RouterABI = `[
  {
    "inputs": [
      {"internalType": "uint256",   "name": "amountIn",     "type": "uint256"},
      {"internalType": "uint256",   "name": "amountOutMin", "type": "uint256"},
      {"internalType": "address[]", "name": "path",         "type": "address[]"},
      {"internalType": "address",   "name": "to",           "type": "address"},
      {"internalType": "uint256",   "name": "deadline",     "type": "uint256"}
    ],
    "name": "swapExactTokensForTokens",
    "outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256",   "name": "amountIn",     "type": "uint256"},
      {"internalType": "uint256",   "name": "amountOutMin", "type": "uint256"},
      {"internalType": "address[]", "name": "path",         "type": "address[]"},
      {"internalType": "address",   "name": "to",           "type": "address"},
      {"internalType": "uint256",   "name": "deadline",     "type": "uint256"}
    ],
    "name": "swapExactTokensForETH",
    "outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256",   "name": "amountIn",     "type": "uint256"},
      {"internalType": "uint256",   "name": "amountOutMin", "type": "uint256"},
      {"internalType": "address[]", "name": "path",         "type": "address[]"},
      {"internalType": "address",   "name": "to",           "type": "address"},
      {"internalType": "uint256",   "name": "deadline",     "type": "uint256"}
    ],
    "name": "swapExactTokensForTokensSupportingFeeOnTransferTokens",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const AMMV3RouterABI = `[
  {
    "inputs": [
      {
        "components": [
          {"internalType": "address", "name": "tokenIn",           "type": "address"},
          {"internalType": "address", "name": "tokenOut",          "type": "address"},
          {"internalType": "uint24",  "name": "fee",               "type": "uint24"},
          {"internalType": "address", "name": "recipient",         "type": "address"},
          {"internalType": "uint256", "name": "deadline",          "type": "uint256"},
          {"internalType": "uint256", "name": "amountIn",          "type": "uint256"},
          {"internalType": "uint256", "name": "amountOutMinimum",  "type": "uint256"},
          {"internalType": "uint160", "name": "sqrtPriceLimitX96", "type": "uint160"}
        ],
        "internalType": "struct ISwapRouter.ExactInputSingleParams",
        "name": "params",
        "type": "tuple"
      }
    ],
    "name": "exactInputSingle",
    "outputs": [{"internalType": "uint256", "name": "amountOut", "type": "uint256"}],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [
      {
        "components": [
          {"internalType": "bytes",   "name": "path",             "type": "bytes"},
          {"internalType": "address", "name": "recipient",        "type": "address"},
          {"internalType": "uint256", "name": "deadline",         "type": "uint256"},
          {"internalType": "uint256", "name": "amountIn",         "type": "uint256"},
          {"internalType": "uint256", "name": "amountOutMinimum", "type": "uint256"}
        ],
        "internalType": "struct ISwapRouter.ExactInputParams",
        "name": "params",
        "type": "tuple"
      }
    ],
    "name": "exactInput",
    "outputs": [{"internalType": "uint256", "name": "amountOut", "type": "uint256"}],
    "stateMutability": "payable",
    "type": "function"
  }
]`

const OrderbookRouterABI = `[
  {
    "inputs": [
      {"internalType": "address[]", "name": "_marketAddresses", "type": "address[]"},
      {"internalType": "bool[]",    "name": "_isBuy",           "type": "bool[]"},
      {"internalType": "bool[]",    "name": "_nativeSend",      "type": "bool[]"},
      {"internalType": "address",   "name": "_debitToken",      "type": "address"},
      {"internalType": "address",   "name": "_creditToken",     "type": "address"},
      {"internalType": "uint256",   "name": "_amount",          "type": "uint256"},
      {"internalType": "uint256",   "name": "_minAmountOut",    "type": "uint256"}
    ],
    "name": "anyToAnySwap",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "payable",
    "type": "function"
  }
]`

const WrapperABI = `[
  {
    "inputs": [],
    "name": "deposit",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "wad", "type": "uint256"}],
    "name": "withdraw",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const AltAMMRouterABI = `[
  {
    "inputs": [
      {"internalType": "uint256", "name": "amountIn",     "type": "uint256"},
      {"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
      {
        "components": [
          {"internalType": "uint256[]", "name": "pairBinSteps", "type": "uint256[]"},
          {"internalType": "uint8[]",   "name": "versions",     "type": "uint8[]"},
          {"internalType": "address[]", "name": "tokenPath",    "type": "address[]"}
        ],
        "internalType": "struct ILBRouter.Path",
        "name": "path",
        "type": "tuple"
      },
      {"internalType": "address", "name": "to",       "type": "address"},
      {"internalType": "uint256", "name": "deadline", "type": "uint256"}
    ],
    "name": "swapExactTokensForTokens",
    "outputs": [{"internalType": "uint256", "name": "amountOut", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const ReferralAMMRouterABI = `[
  {
    "inputs": [
      {"internalType": "uint256",   "name": "amountIn",     "type": "uint256"},
      {"internalType": "uint256",   "name": "amountOutMin", "type": "uint256"},
      {"internalType": "address[]", "name": "path",         "type": "address[]"},
      {"internalType": "address",   "name": "to",           "type": "address"},
      {"internalType": "uint256",   "name": "deadline",     "type": "uint256"},
      {"internalType": "address",   "name": "referrer",     "type": "address"}
    ],
    "name": "swapExactTokensForTokens",
    "outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

// AggregatorABI holds the outer batch call made to the aggregator contract
const AggregatorABI = `[
  {
    "inputs": [
      {"internalType": "address",   "name": "tokenAddress",    "type": "address"},
      {"internalType": "address",   "name": "outTokenAddress", "type": "address"},
      {"internalType": "uint256",   "name": "amount",          "type": "uint256"},
      {"internalType": "address[]", "name": "targets",         "type": "address[]"},
      {"internalType": "bytes[]",   "name": "data",            "type": "bytes[]"},
      {"internalType": "address",   "name": "destination",     "type": "address"},
      {"internalType": "uint256",   "name": "minOutAmount",    "type": "uint256"},
      {"internalType": "uint256",   "name": "deadline",        "type": "uint256"}
    ],
    "name": "aggregate",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  }
]`
