package cli

// TabWidth is the minimum cell width used for tabular command output.
const TabWidth = 2
