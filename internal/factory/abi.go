package factory

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Launchpad factory contract surface: creation/trade events plus the two
// bonding-curve scalars read for listing progress.
const factoryABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "tokenAddress", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "creator", "type": "address"},
      {"indexed": false, "internalType": "string", "name": "name", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "symbol", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "description", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "imageUrl", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "twitterLink", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "telegramLink", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "websiteLink", "type": "string"},
      {"indexed": false, "internalType": "uint256", "name": "initialSupply", "type": "uint256"}
    ],
    "name": "TokenCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "buyer", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenAddress", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "ethSpent", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "tokensBought", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "pricePerToken", "type": "uint256"}
    ],
    "name": "TokenPurchased",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "seller", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenAddress", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "ethReceived", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "tokensSold", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "pricePerToken", "type": "uint256"}
    ],
    "name": "TokenSold",
    "type": "event"
  },
  {
    "inputs": [{"internalType": "address", "name": "token", "type": "address"}],
    "name": "tokenEthSurplus",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "ethCap",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getRecentTokens",
    "outputs": [{"internalType": "address[]", "name": "", "type": "address[]"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	factoryABI     abi.ABI
	factoryABIOnce sync.Once
	factoryABIErr  error
)

// ABI returns the parsed factory contract ABI.
func ABI() (abi.ABI, error) {
	factoryABIOnce.Do(func() {
		factoryABI, factoryABIErr = abi.JSON(strings.NewReader(factoryABIJSON))
	})
	return factoryABI, factoryABIErr
}
