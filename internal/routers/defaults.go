package routers

// Deployed routers on Monad testnet (chain 10143)
var defaultRouters = map[string]RouterInfo{
	"0xfb8e1c3b833f9e67a71c859a132cf783b645e436": {VenueType: VenueAMMV2, Name: "Uniswap V2"},
	"0xCba6b9A951749B8735C603e7fFC5151849248772": {VenueType: VenueAMMV2, Name: "PancakeSwap V2 Deprecated"},
	"0x3a3eBAe0Eec80852FBC7B9E824C6756969cc8dc1": {VenueType: VenueAMMV2, Name: "PancakeSwap V2"},
	"0x006E8E1eAf72eEC070A136e0C315FB554dBeE55B": {VenueType: VenueAMMV2, Name: "Taya V2"},
	"0x64Aff7245EbdAAECAf266852139c67E4D8DBa4de": {VenueType: VenueAMMV2, Name: "Madness V2"},
	"0xCa810D095e90Daae6e867c19DF6D9A8C56db2c89": {VenueType: VenueAMMV2, Name: "Bean V2"},
	"0x619d07287e87C9c643C60882cA80d23C8ed44652": {VenueType: VenueAMMV2, Name: "Nad.fun V2"},
	"0xc7E09B556E1a00cfc40b1039D6615f8423136Df7": {VenueType: VenueAMMV2, Name: "Atlantis V2"},
	"0xb6091233aAcACbA45225a2B2121BBaC807aF4255": {VenueType: VenueAMMV2, Name: "OctoSwap V2"},
	"0xc80585f78A6e44fb46e1445006f820448840386e": {VenueType: VenueAMMV2, Name: "Monda V2"},
	"0x3be99db246c81df2bd8dc0d708e03f64e1a84917": {VenueType: VenueAMMV2, Name: "zkSwap V2"},

	"0x18556DA13313f3532c54711497A8FedAC273220E": {VenueType: VenueAltAMM, Name: "LFJ V1"},

	"0xaBD915749969aE370CFD5421457F41F9dEA8b882": {VenueType: VenueAMMV3, Name: "Uniswap V3"},
	"0x46cf505b6ab4aea209480029c9492cb8014cc6a2": {VenueType: VenueAMMV3, Name: "PancakeSwap V3"},
	"0x911418378663b093a81E4B84Ca5bb0b910816935": {VenueType: VenueAMMV3, Name: "zkSwap V3"},

	"0xc816865f172d640d93712c68a7e1f83f3fa63235": {VenueType: VenueOrderbook, Name: "Kuru"},

	"0x760AfE86e5de5fa0Ee542fc7B7B713e1c5425701": {VenueType: VenueWrapper, Name: "WMON"},
}

var defaultWrappedNative = map[uint64]string{
	10143: "0x760AfE86e5de5fa0Ee542fc7B7B713e1c5425701",
}
