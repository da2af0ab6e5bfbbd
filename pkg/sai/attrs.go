package sai

// SAI attribute names and enum values, as they appear in ASIC_DB hashes.
const (
	SwitchAttrDefaultVirtualRouterID = "SAI_SWITCH_ATTR_DEFAULT_VIRTUAL_ROUTER_ID"
	SwitchAttrSrcMacAddress          = "SAI_SWITCH_ATTR_SRC_MAC_ADDRESS"

	PortAttrAdminState        = "SAI_PORT_ATTR_ADMIN_STATE"
	PortAttrSpeed             = "SAI_PORT_ATTR_SPEED"
	PortAttrFecMode           = "SAI_PORT_ATTR_FEC_MODE"
	PortAttrInternalLoopback  = "SAI_PORT_ATTR_INTERNAL_LOOPBACK_MODE"
	PortAttrPortVlanID        = "SAI_PORT_ATTR_PORT_VLAN_ID"
	PortAttrGlobalFlowControl = "SAI_PORT_ATTR_GLOBAL_FLOW_CONTROL_MODE"
	PortAttrMtu               = "SAI_PORT_ATTR_MTU"

	BridgePortAttrType       = "SAI_BRIDGE_PORT_ATTR_TYPE"
	BridgePortAttrPortID     = "SAI_BRIDGE_PORT_ATTR_PORT_ID"
	BridgePortAttrAdminState = "SAI_BRIDGE_PORT_ATTR_ADMIN_STATE"
	BridgePortTypePort       = "SAI_BRIDGE_PORT_TYPE_PORT"

	VlanAttrVlanID = "SAI_VLAN_ATTR_VLAN_ID"

	VlanMemberAttrVlanID       = "SAI_VLAN_MEMBER_ATTR_VLAN_ID"
	VlanMemberAttrBridgePortID = "SAI_VLAN_MEMBER_ATTR_BRIDGE_PORT_ID"
	VlanMemberAttrTaggingMode  = "SAI_VLAN_MEMBER_ATTR_VLAN_TAGGING_MODE"
	VlanTaggingModeTagged      = "SAI_VLAN_TAGGING_MODE_TAGGED"
	VlanTaggingModeUntagged    = "SAI_VLAN_TAGGING_MODE_UNTAGGED"

	RouterInterfaceAttrVirtualRouterID = "SAI_ROUTER_INTERFACE_ATTR_VIRTUAL_ROUTER_ID"
	RouterInterfaceAttrType            = "SAI_ROUTER_INTERFACE_ATTR_TYPE"
	RouterInterfaceAttrVlanID          = "SAI_ROUTER_INTERFACE_ATTR_VLAN_ID"
	RouterInterfaceAttrSrcMacAddress   = "SAI_ROUTER_INTERFACE_ATTR_SRC_MAC_ADDRESS"
	RouterInterfaceAttrMtu             = "SAI_ROUTER_INTERFACE_ATTR_MTU"
	RouterInterfaceTypeVlan            = "SAI_ROUTER_INTERFACE_TYPE_VLAN"

	FdbEntryAttrType         = "SAI_FDB_ENTRY_ATTR_TYPE"
	FdbEntryAttrBridgePortID = "SAI_FDB_ENTRY_ATTR_BRIDGE_PORT_ID"
	FdbEntryAttrPacketAction = "SAI_FDB_ENTRY_ATTR_PACKET_ACTION"
	FdbEntryTypeStatic       = "SAI_FDB_ENTRY_TYPE_STATIC"
	FdbEntryTypeDynamic      = "SAI_FDB_ENTRY_TYPE_DYNAMIC"
	PacketActionForward      = "SAI_PACKET_ACTION_FORWARD"

	NeighborEntryAttrDstMacAddress = "SAI_NEIGHBOR_ENTRY_ATTR_DST_MAC_ADDRESS"
)

// PortFecMode values.
const (
	PortFecModeNone = "SAI_PORT_FEC_MODE_NONE"
	PortFecModeRS   = "SAI_PORT_FEC_MODE_RS"
	PortFecModeFC   = "SAI_PORT_FEC_MODE_FC"
)

// PortInternalLoopbackMode values.
const (
	PortLoopbackNone = "SAI_PORT_INTERNAL_LOOPBACK_MODE_NONE"
	PortLoopbackPhy  = "SAI_PORT_INTERNAL_LOOPBACK_MODE_PHY"
	PortLoopbackMac  = "SAI_PORT_INTERNAL_LOOPBACK_MODE_MAC"
)

// PortFlowControlMode values.
const (
	PortFlowControlDisable = "SAI_PORT_FLOW_CONTROL_MODE_DISABLE"
	PortFlowControlTxOnly  = "SAI_PORT_FLOW_CONTROL_MODE_TX_ONLY"
	PortFlowControlRxOnly  = "SAI_PORT_FLOW_CONTROL_MODE_RX_ONLY"
	PortFlowControlBoth    = "SAI_PORT_FLOW_CONTROL_MODE_BOTH_ENABLE"
)

// BoolValue renders a boolean attribute value.
func BoolValue(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
